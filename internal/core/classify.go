package core

// classify.go derives a record's semantic identity from a small set of
// descriptor cells. Classification and date validation are independent gates:
// a row needs both a name and a strictly formatted date to be accepted.

import (
	"fmt"
	"regexp"
	"time"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// Classification is the semantic identity derived from one row.
type Classification struct {
	Kind        string
	Name        string
	Descriptor1 string // home team, when present
	Descriptor2 string // away team, when present
}

// Classify resolves a row's kind and display name from its descriptor cells,
// in priority order:
//
//  1. both team cells filled                         -> two-party, "Home vs Away"
//  2. home team and title filled                     -> single-party, title
//  3. title only                                     -> standalone, title
//  4. auto-generated name cell only, no other cells  -> standalone, that name
//
// A lone team cell does not identify an event, even when an auto-generated
// name is present. When no rule matches the row has no identity and a
// ValidationError is returned.
func Classify(row []string, cm ColumnMap) (*Classification, error) {
	d1 := cellAt(row, cm.IndexOf("homeTeam"))
	d2 := cellAt(row, cm.IndexOf("awayTeam"))
	title := cellAt(row, cm.IndexOf("title"))
	autoName := cellAt(row, cm.IndexOf("eventName"))

	switch {
	case d1 != "" && d2 != "":
		return &Classification{
			Kind:        KindTwoParty,
			Name:        fmt.Sprintf("%s vs %s", d1, d2),
			Descriptor1: d1,
			Descriptor2: d2,
		}, nil
	case d1 != "" && title != "":
		return &Classification{
			Kind:        KindSingleParty,
			Name:        title,
			Descriptor1: d1,
		}, nil
	case title != "":
		return &Classification{Kind: KindStandalone, Name: title}, nil
	case autoName != "" && d1 == "" && d2 == "":
		return &Classification{Kind: KindStandalone, Name: autoName}, nil
	default:
		return nil, errNoIdentity()
	}
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether the cell is a strictly formatted, real calendar
// date. This is the one required-field gate for row acceptance.
func ValidDate(cell string) bool {
	cell = CleanCell(cell)
	if !dateRe.MatchString(cell) {
		return false
	}
	_, err := time.Parse("2006-01-02", cell)
	return err == nil
}

// CheckDate validates the date cell of a row against the column map.
// Returns a ValidationError naming the date field when the cell is missing,
// malformed, or not a real calendar date.
func CheckDate(row []string, cm ColumnMap) error {
	idx := cm.IndexOf(schema.DateField)
	if idx < 0 {
		return &ValidationError{Field: schema.DateField, Message: "date column not present"}
	}
	cell := cellAt(row, idx)
	if !ValidDate(cell) {
		return &ValidationError{
			Field:   schema.DateField,
			Value:   cell,
			Message: "invalid date (expected YYYY-MM-DD)",
		}
	}
	return nil
}

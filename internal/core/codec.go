package core

// codec.go is the bidirectional transform between a raw sheet row (ordered
// cell slice) and a semantic Record.
//
// Decode is deliberately lenient: a cell that fails numeric coercion becomes 0
// with a warning instead of rejecting the whole row, and a blank cell for a
// non-required field is simply omitted so the store value survives the merge.
// Encode is the inverse, except that computed columns are re-emitted as
// spreadsheet formulas rather than values: the sheet owns those cells.

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// PlaceholderRow is the canonical row number formulas are authored against
// before their destination row is known.
const PlaceholderRow = 2

// Decode converts a raw row into a Record using the column map.
//
// Computed columns are never imported. Blank cells for non-required fields are
// skipped entirely (preserve-on-empty). Classification is a separate concern;
// the caller merges the Classify result into the returned record.
func Decode(row []string, cm ColumnMap) *Record {
	rec := &Record{
		Attributes: make(map[string]any),
		Origin:     OriginSheet,
	}

	for idx, field := range cm {
		if field.Computed() {
			continue
		}

		cell := cellAt(row, idx)
		if cell == "" && !field.Required {
			continue
		}

		value := coerce(cell, field)
		if field.Attribute {
			rec.Attributes[field.Name] = value
			continue
		}

		switch field.Name {
		case schema.IdentityField:
			rec.Token, _ = value.(string)
		case schema.DateField:
			rec.Date, _ = value.(string)
		case "homeTeam":
			rec.HomeTeam, _ = value.(string)
		case "awayTeam":
			rec.AwayTeam, _ = value.(string)
		case "title":
			rec.Title, _ = value.(string)
		case "updatedAt":
			if ts, ok := value.(time.Time); ok {
				rec.SourceModifiedAt = ts
			}
		}
	}

	return rec
}

// Encode converts a Record into a raw row covering every mapped column, with
// formulas authored at PlaceholderRow.
//
// The identity column is always populated: the record's existing token, or a
// freshly generated one assigned back onto the record.
func Encode(rec *Record, cm ColumnMap) []string {
	row := make([]string, cm.Width())

	for idx, field := range cm {
		if field.Computed() {
			row[idx] = renderFormula(field, cm, PlaceholderRow)
			continue
		}

		switch field.Name {
		case schema.IdentityField:
			row[idx] = EnsureToken(rec)
		case schema.DateField:
			row[idx] = rec.Date
		case "homeTeam":
			row[idx] = rec.HomeTeam
		case "awayTeam":
			row[idx] = rec.AwayTeam
		case "title":
			row[idx] = rec.Title
		case "updatedAt":
			if !rec.SourceModifiedAt.IsZero() {
				row[idx] = rec.SourceModifiedAt.UTC().Format(time.RFC3339)
			}
		default:
			if field.Attribute {
				row[idx] = formatAttribute(rec.Attributes[field.Name])
			}
		}
	}

	return row
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9]*)\}`)

// renderFormula expands a formula template against the live column map,
// substituting {fieldName} placeholders with column letters and {row} with
// the given row number. A template referencing a column absent from the sheet
// cannot be authored; the cell is left blank with a warning.
func renderFormula(field schema.Field, cm ColumnMap, row int) string {
	missing := false
	out := placeholderRe.ReplaceAllStringFunc(field.Formula, func(m string) string {
		name := m[1 : len(m)-1]
		if name == "row" {
			return strconv.Itoa(row)
		}
		idx := cm.IndexOf(name)
		if idx < 0 {
			missing = true
			return m
		}
		return columnLetter(idx)
	})
	if missing {
		slog.Warn("cannot author formula, referenced column missing from sheet",
			"field", field.Name)
		return ""
	}
	return out
}

var rowRefRe = regexp.MustCompile(`(\$?[A-Z]{1,3}\$?)` + strconv.Itoa(PlaceholderRow) + `\b`)

// RewriteRowReferences replaces the placeholder row number inside any formula
// cell with the row's true destination number. Formulas are authored before an
// append or write resolves to a concrete row, so this runs once the
// destination is known.
func RewriteRowReferences(row []string, actualRow int) []string {
	out := make([]string, len(row))
	repl := "${1}" + strconv.Itoa(actualRow)
	for i, cell := range row {
		if strings.HasPrefix(cell, "=") {
			out[i] = rowRefRe.ReplaceAllString(cell, repl)
		} else {
			out[i] = cell
		}
	}
	return out
}

// coerce converts a cleaned cell to its typed value per the field definition.
func coerce(cell string, field schema.Field) any {
	switch field.Type {
	case schema.FieldNumber:
		return parseNumber(cell, field.Name)
	case schema.FieldTimestamp:
		return parseTimestamp(cell)
	default:
		// uuid, string, date, status, text all pass through trimmed.
		return cell
	}
}

// parseNumber coerces a numeric cell, tolerating currency symbols, thousands
// separators, and accounting-style negatives. Unparseable input becomes 0
// rather than rejecting the row; the coercion is still surfaced on the warn
// channel so bad cells are not silently swallowed.
func parseNumber(cell, fieldName string) float64 {
	s := cell
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for _, sym := range []string{"$", "€", "£", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		slog.Warn("numeric cell coerced to 0", "field", fieldName, "value", cell)
		return 0
	}
	return n
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(cell string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, cell); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// formatAttribute renders an attribute value back to its cell form.
func formatAttribute(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return ""
	}
}

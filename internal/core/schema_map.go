package core

// schema_map.go derives the column-index to field-definition mapping from a
// live header row.
//
// The mapping is recomputed on every sync: the spreadsheet is a human-edited
// surface whose column order drifts, and a compiled-in layout would silently
// misfile data after any reorder. Unknown headers degrade the sync rather than
// failing it; duplicate headers fail it outright because there is no safe way
// to pick a winner.

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// MapHeader builds a ColumnMap from the header row.
//
// Each header cell is normalized to a canonical camelCase field name and
// looked up in the registry. Headers that match no known field are skipped
// with a warning so the sync proceeds over the remaining columns. Two headers
// resolving to the same canonical name reject the whole sync.
func MapHeader(header []string) (ColumnMap, error) {
	cm := make(ColumnMap)
	seen := make(map[string]int)

	for idx, raw := range header {
		cell := CleanCell(raw)
		if cell == "" {
			continue
		}

		name := NormalizeHeader(cell)
		field, ok := schema.Lookup(name)
		if !ok {
			slog.Warn("skipping unknown column",
				"header", cell,
				"normalized", name,
				"column", columnLetter(idx),
			)
			continue
		}

		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate header %q (columns %s and %s)",
				cell, columnLetter(prev), columnLetter(idx))
		}
		seen[name] = idx
		cm[idx] = field
	}

	return cm, nil
}

// NormalizeHeader converts a header cell to its canonical camelCase form.
// Already-camelCase headers pass through unchanged; spaced or punctuated
// headers are tokenized and camelCased ("Home Team" -> "homeTeam").
func NormalizeHeader(h string) string {
	tokens := tokenize(h)
	if len(tokens) == 0 {
		return ""
	}

	// A single token that already looks like an identifier only needs its
	// first rune lowered ("HomeTeam" -> "homeTeam", "homeTeam" unchanged).
	if len(tokens) == 1 {
		return lowerFirst(tokens[0])
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(tokens[0]))
	for _, tok := range tokens[1:] {
		b.WriteString(upperFirst(strings.ToLower(tok)))
	}
	return b.String()
}

// tokenize splits a header on any run of non-alphanumeric characters.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

package core

import "strings"

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes formula-as-text prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// isEmptyRow reports whether every cell in the row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cellAt returns the cleaned cell at a zero-based column index, tolerating
// short rows.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return CleanCell(row[idx])
}

// columnLetter converts a zero-based column index to its spreadsheet letter
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLetter(idx int) string {
	letter := ""
	n := idx + 1
	for n > 0 {
		n--
		letter = string(rune('A'+n%26)) + letter
		n /= 26
	}
	return letter
}

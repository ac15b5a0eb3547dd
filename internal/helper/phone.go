package helper

import (
	"net/url"
	"strings"

	"wa-blaster/internal/model"
)

// NormalizeStats counts how many rows each normalization stage removed.
type NormalizeStats struct {
	Input            int  `json:"input"`
	DroppedEmpty     int  `json:"droppedEmpty"`
	DroppedInvalid   int  `json:"droppedInvalid"`
	DroppedDuplicate int  `json:"droppedDuplicate"`
	Kept             int  `json:"kept"`
	MissingColumn    bool `json:"missingColumn,omitempty"`
}

// StripNonDigits keeps only ASCII 0-9.
func StripNonDigits(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// NormalizeNumber applies the per-value rules to one raw phone number.
// ok is false when the value is empty after stripping or fails the canonical shape.
func NormalizeNumber(raw string) (string, bool) {
	x := StripNonDigits(raw)
	if x == "" {
		return "", false
	}

	// local mobile without trunk prefix: 1xxxxxxxx(x) -> 601xxxxxxxx(x)
	if x[0] == '1' && len(x) > 8 && len(x) < 11 {
		x = "60" + x
	}
	// local mobile with trunk prefix: 01xxxxxxxx(x) -> 601xxxxxxxx(x)
	if x[0] == '0' && len(x) > 9 && len(x) < 12 {
		x = "6" + x
	}

	if len(x) < 11 || len(x) > 12 || x[2] != '1' {
		return "", false
	}
	return x, true
}

// IsCanonicalNumber reports whether s is already digits-only, 11-12 long with '1' at index 2.
func IsCanonicalNumber(s string) bool {
	if len(s) < 11 || len(s) > 12 || s[2] != '1' {
		return false
	}
	return StripNonDigits(s) == s
}

// NormalizeNumbers rewrites column in place to canonical numbers, drops rows that are
// empty or invalid, dedupes on the canonical value keeping the first occurrence and
// returns the surviving values in row order. Bad rows are filtered, never reported as errors.
func NormalizeNumbers(table *model.ContactTable, column string) ([]string, NormalizeStats) {
	stats := NormalizeStats{Input: table.Len()}

	col := table.Column(column)
	if col < 0 {
		stats.MissingColumn = true
		stats.DroppedInvalid = table.Len()
		table.Rows = table.Rows[:0]
		return []string{}, stats
	}

	seen := make(map[string]bool, table.Len())
	kept := table.Rows[:0]
	numbers := make([]string, 0, table.Len())

	for i := range table.Rows {
		if StripNonDigits(table.Value(i, col)) == "" {
			stats.DroppedEmpty++
			continue
		}
		number, ok := NormalizeNumber(table.Value(i, col))
		if !ok {
			stats.DroppedInvalid++
			continue
		}
		if seen[number] {
			stats.DroppedDuplicate++
			continue
		}
		seen[number] = true

		table.SetValue(i, col, number)
		kept = append(kept, table.Rows[i])
		numbers = append(numbers, number)
	}

	table.Rows = kept
	stats.Kept = len(numbers)
	return numbers, stats
}

// ChatLink builds the web client URL that opens a chat with number.
func ChatLink(base, number string) string {
	return base + url.QueryEscape(number)
}

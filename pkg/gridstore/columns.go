package gridstore

import "fmt"

// ColumnLetter converts a 1-based column index to its A1-style letter
// ("A", "Z", "AA", "AZ", ...).
func ColumnLetter(n int) string {
	if n <= 0 {
		return ""
	}

	letters := ""

	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}

	return letters
}

// RangeRef renders an A1-style reference covering cols columns of a single
// row, for display in logs and reports.
func RangeRef(row, cols int) string {
	if cols <= 0 {
		cols = 1
	}

	return fmt.Sprintf("A%d:%s%d", row, ColumnLetter(cols), row)
}

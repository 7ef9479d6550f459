package mysql

import "strings"

// orDash normalizes report metadata columns: blank file names and
// languages are stored as "-" so listings never render empty cells.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

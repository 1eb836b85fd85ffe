// Package utils provides shared text, logging and rate limiting helpers.
package utils

import "unicode/utf8"

// Truncate returns s cut to maxLen characters with "..." appended when it was cut.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// Package util provides shared utility functions used across the codebase.
package util

import "strings"

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// FirstLine returns the first non-empty line of s with interior whitespace
// collapsed to single spaces.
func FirstLine(s string) string {
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		normalized := strings.Join(strings.Fields(line), " ")
		if normalized != "" {
			return normalized
		}
	}
	return ""
}

// Flatten replaces newlines with spaces so multi-line text fits in a single
// table cell or log line.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

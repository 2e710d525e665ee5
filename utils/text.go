package utils

import "unicode/utf8"

// PreviewLength is how many characters of a message end up in logs
const PreviewLength = 100

// Truncate shortens s to at most max runes, appending "..." when it was cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// Preview truncates s to PreviewLength for log output
func Preview(s string) string {
	return Truncate(s, PreviewLength)
}

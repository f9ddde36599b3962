package util

import "time"

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// MonthKey formats a time as the calendar-month key used by the monthly usage
// counter, e.g. "2026-08".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

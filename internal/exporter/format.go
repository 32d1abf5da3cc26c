package exporter

import (
	"strconv"
	"time"
)

// formatFloat formats a float64 value for CSV output with 6 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

// formatDate formats a date as YYYY-MM-DD; the zero time is empty
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

package exporter

import (
	"fmt"
	"time"
)

// DateLayout is the date format of exported rows
const DateLayout = "2006-01-02"

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatDate formats a record date for CSV output
func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

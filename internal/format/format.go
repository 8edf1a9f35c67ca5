// Package format renders numbers the way the console displays them.
package format

import (
	"fmt"
	"regexp"
	"time"
)

// Placeholder is shown where a value is missing.
const Placeholder = "—"

// Percent renders a 0-100 value with one decimal.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// PercentPtr is Percent for nullable values.
func PercentPtr(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return Percent(*v)
}

// Seconds renders a millisecond duration as seconds, e.g. "2.10s".
func Seconds(ms *float64) string {
	if ms == nil || *ms == 0 {
		return Placeholder
	}
	return fmt.Sprintf("%.2fs", *ms/1000)
}

// Megabytes renders a byte count as MB with two decimals.
func Megabytes(n int64) string {
	if n <= 0 {
		return Placeholder
	}
	return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
}

// Timestamp renders t in UTC, or the placeholder for the zero time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

var modelExt = regexp.MustCompile(`(?i)\.(h5|hdf5)$`)

// ModelName strips the Keras weight file extension.
func ModelName(filename string) string {
	return modelExt.ReplaceAllString(filename, "")
}

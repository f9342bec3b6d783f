// Package timeutil formats times and durations for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat uses Go's reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatDuration renders d as "3d 0h 30m 15s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatAge renders how long before now t was, e.g. "4m 2s ago".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return FormatDuration(now.Sub(t)) + " ago"
}

// FormatTime renders t in local time, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

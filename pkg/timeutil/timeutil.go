// Package timeutil provides timezone-aware calendar helpers.
// Users carry their own IANA zone; every wall-clock computation goes through here.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// LoadLocation resolves an IANA zone name, falling back to UTC for empty or unknown names.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidLocation reports whether name is empty or a zone the runtime knows.
func ValidLocation(name string) bool {
	if strings.TrimSpace(name) == "" {
		return true
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// AtClock returns the instant of hour:minute on the calendar day of t in loc,
// shifted by days. time.Date normalizes overflowing days, so wall-clock time
// is kept across DST transitions.
func AtClock(t time.Time, loc *time.Location, days, hour, minute int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, loc)
}

// DaysUntilWeekday returns how many days forward from `from` the weekday `to` falls (0..6).
func DaysUntilWeekday(from, to time.Weekday) int {
	return (int(to) - int(from) + 7) % 7
}

// FormatUntil renders a positive duration as "Xh Ym", rounding down to the minute.
func FormatUntil(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

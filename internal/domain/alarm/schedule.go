package alarm

import (
	"time"

	"github.com/wakeup-hub/wakeup-hub/pkg/timeutil"
)

// Occurrence is the next firing instant together with the alarm that owns it.
type Occurrence struct {
	At      time.Time `json:"at"`
	AlarmID string    `json:"alarm_id"`
}

// Next finds the soonest instant strictly after now at which any enabled alarm
// fires, evaluating weekdays and wall-clock times in loc. A candidate equal to
// now is rolled forward a week so the scheduling poll never fires itself.
// Ties keep the alarm that appears first in alarms.
func Next(now time.Time, loc *time.Location, alarms []Alarm) (Occurrence, bool) {
	if loc == nil {
		loc = time.UTC
	}

	var (
		best  Occurrence
		found bool
	)
	today := now.In(loc).Weekday()

	for _, a := range alarms {
		if !a.IsActive() {
			continue
		}
		for _, wd := range a.Days.Weekdays() {
			at := nextOnWeekday(now, loc, today, wd, a.Time)
			if !found || at.Before(best.At) {
				best = Occurrence{At: at, AlarmID: a.ID}
				found = true
			}
		}
	}

	return best, found
}

// NextFor is Next for a single alarm.
func NextFor(now time.Time, loc *time.Location, a Alarm) (time.Time, bool) {
	occ, ok := Next(now, loc, []Alarm{a})
	return occ.At, ok
}

func nextOnWeekday(now time.Time, loc *time.Location, today, wd time.Weekday, at TimeOfDay) time.Time {
	candidate := timeutil.AtClock(now, loc, timeutil.DaysUntilWeekday(today, wd), at.Hour, at.Minute)
	if !candidate.After(now) {
		candidate = timeutil.AtClock(candidate, loc, 7, at.Hour, at.Minute)
	}
	return candidate
}

// Until is the remaining time until occ as "Xh Ym".
func Until(now time.Time, occ Occurrence) string {
	return timeutil.FormatUntil(occ.At.Sub(now))
}

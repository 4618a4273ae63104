package challenge

import (
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
)

const (
	earlyBirdHour     = 7
	championSleep     = 8 * time.Hour
	scheduleTolerance = 15 * time.Minute
)

// Streak counts consecutive sessions, newest first, that satisfy the
// challenge's rule. sessions must be closed and ordered newest first.
// Wall-clock rules are evaluated in loc.
func Streak(name Name, sessions []sleep.Session, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	if name == ConsistentSchedule {
		return consistentStreak(sessions, loc)
	}

	var n int
	for _, s := range sessions {
		if !qualifies(name, s, loc) {
			break
		}
		n++
	}
	return n
}

func qualifies(name Name, s sleep.Session, loc *time.Location) bool {
	if s.EndTime == nil {
		return false
	}
	switch name {
	case EarlyBird:
		return s.EndTime.In(loc).Hour() < earlyBirdHour
	case NoSnoozeMaster:
		return !s.Snoozed
	case SleepChampion:
		return s.EndTime.Sub(s.StartTime) >= championSleep
	}
	return false
}

// consistentStreak walks adjacent pairs backward; the streak holds while each
// session starts at the same local clock time on the next calendar day, give
// or take the tolerance. Comparing wall clocks keeps a DST change from
// breaking the chain. A missed night is about 48h and breaks it.
func consistentStreak(sessions []sleep.Session, loc *time.Location) int {
	if len(sessions) < 2 {
		return 0
	}
	n := 1
	for i := 0; i+1 < len(sessions); i++ {
		drift := wallClockGap(sessions[i+1].StartTime, sessions[i].StartTime, loc) - 24*time.Hour
		if drift < 0 {
			drift = -drift
		}
		if drift > scheduleTolerance {
			break
		}
		n++
	}
	return n
}

// wallClockGap is the distance from a to b as read off a wall clock in loc:
// whole calendar days plus the change in time of day.
func wallClockGap(a, b time.Time, loc *time.Location) time.Duration {
	a, b = a.In(loc), b.In(loc)
	days := civilDay(b) - civilDay(a)
	return time.Duration(days)*24*time.Hour + sinceMidnight(b) - sinceMidnight(a)
}

func civilDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

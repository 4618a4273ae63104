package timeutil

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus_Mons"))
	assert.Equal(t, "Europe/Berlin", LoadLocation("Europe/Berlin").String())
}

func TestDaysUntilWeekday(t *testing.T) {
	assert.Equal(t, 0, DaysUntilWeekday(time.Monday, time.Monday))
	assert.Equal(t, 1, DaysUntilWeekday(time.Monday, time.Tuesday))
	assert.Equal(t, 6, DaysUntilWeekday(time.Monday, time.Sunday))
	assert.Equal(t, 1, DaysUntilWeekday(time.Saturday, time.Sunday))
	assert.Equal(t, 2, DaysUntilWeekday(time.Saturday, time.Monday))
}

func TestAtClock_KeepsWallClockAcrossDST(t *testing.T) {
	berlin := LoadLocation("Europe/Berlin")
	// 2026-03-28 is the Saturday before the spring-forward switch.
	sat := time.Date(2026, 3, 28, 12, 0, 0, 0, berlin)

	next := AtClock(sat, berlin, 2, 7, 30)

	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Equal(t, time.Monday, next.Weekday())
	// 43h30m of wall-clock time, one hour of which is skipped by the switch.
	assert.Equal(t, 42*time.Hour+30*time.Minute, next.Sub(sat))
}

func TestFormatUntil(t *testing.T) {
	assert.Equal(t, "0h 0m", FormatUntil(-time.Minute))
	assert.Equal(t, "7h 5m", FormatUntil(7*time.Hour+5*time.Minute+59*time.Second))
	assert.Equal(t, "30h 0m", FormatUntil(30*time.Hour))
}


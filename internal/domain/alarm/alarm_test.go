package alarm

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/timeutil"
)

// Wednesday 2026-01-07 10:00 UTC.
var wednesday = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

func mustAlarm(t *testing.T, id string, hour, minute int, days ...time.Weekday) Alarm {
	t.Helper()
	a, err := New(id, TimeOfDay{Hour: hour, Minute: minute}, NewDays(days...), "", wednesday)
	require.NoError(t, err)
	return *a
}

func TestNext_NoEnabledAlarm(t *testing.T) {
	disabled := mustAlarm(t, "a1", 7, 0, time.Monday)
	disabled.SetEnabled(false, wednesday)
	noDays := mustAlarm(t, "a2", 7, 0)

	tests := []struct {
		name   string
		alarms []Alarm
	}{
		{"nil", nil},
		{"disabled", []Alarm{disabled}},
		{"no days", []Alarm{noDays}},
		{"both", []Alarm{disabled, noDays}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Next(wednesday, time.UTC, tt.alarms)
			assert.False(t, ok)
		})
	}
}

func TestNext_PassedTodayRollsAWeek(t *testing.T) {
	a := mustAlarm(t, "a1", 7, 30, time.Wednesday)

	occ, ok := Next(wednesday, time.UTC, []Alarm{a})

	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 14, 7, 30, 0, 0, time.UTC), occ.At)
	assert.Equal(t, "a1", occ.AlarmID)
}

func TestNext_UpcomingToday(t *testing.T) {
	a := mustAlarm(t, "a1", 22, 15, time.Wednesday)

	occ, ok := Next(wednesday, time.UTC, []Alarm{a})

	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 7, 22, 15, 0, 0, time.UTC), occ.At)
}

func TestNext_ExactlyNowIsExcluded(t *testing.T) {
	a := mustAlarm(t, "a1", 10, 0, time.Wednesday)

	occ, ok := Next(wednesday, time.UTC, []Alarm{a})

	require.True(t, ok)
	assert.Equal(t, wednesday.AddDate(0, 0, 7), occ.At)
}

func TestNext_PicksMinimumAcrossAlarmsAndDays(t *testing.T) {
	weekend := mustAlarm(t, "weekend", 9, 0, time.Saturday, time.Sunday)
	weekdays := mustAlarm(t, "weekdays", 6, 45, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)

	occ, ok := Next(wednesday, time.UTC, []Alarm{weekend, weekdays})

	require.True(t, ok)
	assert.Equal(t, "weekdays", occ.AlarmID)
	assert.Equal(t, time.Date(2026, 1, 8, 6, 45, 0, 0, time.UTC), occ.At)
}

func TestNext_TieKeepsFirstAlarm(t *testing.T) {
	first := mustAlarm(t, "first", 8, 0, time.Friday)
	second := mustAlarm(t, "second", 8, 0, time.Friday)

	occ, ok := Next(wednesday, time.UTC, []Alarm{first, second})

	require.True(t, ok)
	assert.Equal(t, "first", occ.AlarmID)
}

func TestNext_UsesUserLocation(t *testing.T) {
	tokyo := timeutil.LoadLocation("Asia/Tokyo")
	// 10:00 UTC is 19:00 Wednesday in Tokyo.
	a := mustAlarm(t, "a1", 20, 0, time.Wednesday)

	occ, ok := Next(wednesday, tokyo, []Alarm{a})

	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 7, 11, 0, 0, 0, time.UTC), occ.At.UTC())
	assert.Equal(t, "1h 0m", Until(wednesday, occ))
}

func TestNew_RejectsInvalidTime(t *testing.T) {
	_, err := New("a1", TimeOfDay{Hour: 24}, Everyday, "", wednesday)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewTimeOfDay(7, 60)
	assert.ErrorIs(t, err, shared.ErrInvalidTimeOfDay)
}

func TestDays_JSON(t *testing.T) {
	var d Days
	require.NoError(t, json.Unmarshal([]byte(`["Sunday","mon","FRI"]`), &d))

	assert.True(t, d.Has(time.Sunday))
	assert.True(t, d.Has(time.Monday))
	assert.True(t, d.Has(time.Friday))
	assert.False(t, d.Has(time.Tuesday))

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `["mon","fri","sun"]`, string(out))

	err = json.Unmarshal([]byte(`["funday"]`), &d)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

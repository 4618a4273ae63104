package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
)

var now = time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := New(NewUserParams{
		ID:       "u1",
		Email:    "  Sleeper@Example.com ",
		Username: "sleeper",
		Timezone: "UTC",
	}, now)
	require.NoError(t, err)
	u.PullEvents()
	return u
}

func eventTypes(events []shared.Event) []shared.EventType {
	out := make([]shared.EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

func TestNew(t *testing.T) {
	u, err := New(NewUserParams{ID: "u1", Email: "A@B.io", Username: "ab"}, now)
	require.NoError(t, err)

	assert.Equal(t, "a@b.io", u.Email)
	assert.Equal(t, "ab", u.DisplayName)
	assert.Len(t, u.Challenges, len(challenge.Names))
	assert.Equal(t, []shared.EventType{shared.EventUserRegistered}, eventTypes(u.PullEvents()))
	assert.Empty(t, u.PullEvents())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewUserParams
	}{
		{"missing id", NewUserParams{Email: "a@b.io", Username: "ab"}},
		{"bad email", NewUserParams{ID: "u1", Email: "nope", Username: "ab"}},
		{"short username", NewUserParams{ID: "u1", Email: "a@b.io", Username: "a"}},
		{"bad timezone", NewUserParams{ID: "u1", Email: "a@b.io", Username: "ab", Timezone: "Moon/Base"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, now)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestUser_AlarmLifecycle(t *testing.T) {
	u := newTestUser(t)

	a, err := u.AddAlarm("a1", alarm.TimeOfDay{Hour: 6, Minute: 30}, alarm.NewDays(time.Tuesday), "work", now)
	require.NoError(t, err)
	assert.True(t, a.Enabled)

	occ, ok := u.NextAlarm(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 6, 30, 0, 0, time.UTC), occ.At)

	off := false
	_, err = u.ToggleAlarm("a1", &off, now)
	require.NoError(t, err)
	_, ok = u.NextAlarm(now)
	assert.False(t, ok)

	toggled, err := u.ToggleAlarm("a1", nil, now)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)

	seven := alarm.TimeOfDay{Hour: 7}
	edited, err := u.EditAlarm("a1", AlarmChange{Time: &seven}, now)
	require.NoError(t, err)
	assert.Equal(t, seven, edited.Time)
	assert.Equal(t, "work", edited.Label)

	bad := alarm.TimeOfDay{Hour: 25}
	_, err = u.EditAlarm("a1", AlarmChange{Time: &bad}, now)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, seven, u.Alarms[0].Time)

	require.NoError(t, u.DeleteAlarm("a1", now))
	assert.Empty(t, u.Alarms)
	assert.ErrorIs(t, u.DeleteAlarm("a1", now), shared.ErrNotFound)

	assert.Len(t, u.PullEvents(), 5)
}

func TestUser_SleepAndCollect(t *testing.T) {
	u := newTestUser(t)
	u.XP = 90

	for i := 0; i < 3; i++ {
		start := now.AddDate(0, 0, i)
		s, err := u.StartSleep("s"+string(rune('1'+i)), start)
		require.NoError(t, err)
		_, err = u.EndSleep(s.ID, start.Add(8*time.Hour+30*time.Minute))
		require.NoError(t, err)
	}

	c, _ := u.Challenges.Get(challenge.SleepChampion)
	require.True(t, c.Completed)
	assert.Equal(t, 1, u.Level().Level)
	u.PullEvents()

	r, err := u.CollectReward(challenge.SleepChampion, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 25, r.XP)
	assert.Equal(t, 115, u.XP)
	assert.Equal(t, 2, u.Level().Level)
	assert.InDelta(t, 15.0, u.Level().Percent, 0.001)
	assert.Equal(t,
		[]shared.EventType{shared.EventRewardCollected, shared.EventLevelUp},
		eventTypes(u.PullEvents()))

	_, err = u.CollectReward(challenge.SleepChampion, nil, now)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, 115, u.XP)
}

func TestUser_SnoozedWakeUpBreaksNoSnoozeStreak(t *testing.T) {
	u := newTestUser(t)
	for i := 0; i < 3; i++ {
		start := now.AddDate(0, 0, i)
		id := "s" + string(rune('1'+i))
		_, err := u.StartSleep(id, start)
		require.NoError(t, err)
		_, err = u.EndSleep(id, start.Add(8*time.Hour))
		require.NoError(t, err)
	}
	c, _ := u.Challenges.Get(challenge.NoSnoozeMaster)
	require.True(t, c.Completed)

	w, err := sleep.NewWakeUp("w1", "", now, sleep.GameMath, 1, 20)
	require.NoError(t, err)
	saved, err := u.SaveWakeUp(w, now)
	require.NoError(t, err)

	assert.Equal(t, "s3", saved.SessionID)
	assert.True(t, u.Sessions[2].Snoozed)
	c, _ = u.Challenges.Get(challenge.NoSnoozeMaster)
	assert.False(t, c.Completed)
	assert.Equal(t, 0, c.Progress)
}

func TestUser_SnoozeIsChargedToNamedSession(t *testing.T) {
	u := newTestUser(t)
	for i := 0; i < 2; i++ {
		start := now.AddDate(0, 0, i)
		id := "s" + string(rune('1'+i))
		_, err := u.StartSleep(id, start)
		require.NoError(t, err)
		_, err = u.EndSleep(id, start.Add(8*time.Hour))
		require.NoError(t, err)
	}

	w, err := sleep.NewWakeUp("w1", "s1", now, sleep.GameShake, 2, 30)
	require.NoError(t, err)
	saved, err := u.SaveWakeUp(w, now)
	require.NoError(t, err)

	assert.Equal(t, "s1", saved.SessionID)
	assert.True(t, u.Sessions[0].Snoozed)
	assert.False(t, u.Sessions[1].Snoozed)
	c, _ := u.Challenges.Get(challenge.NoSnoozeMaster)
	assert.Equal(t, 1, c.Progress)
}

func TestUser_SaveWakeUpUnknownSession(t *testing.T) {
	u := newTestUser(t)
	_, err := u.StartSleep("s1", now)
	require.NoError(t, err)
	u.PullEvents()

	w, err := sleep.NewWakeUp("w1", "no-such-session", now, sleep.GameMath, 0, 10)
	require.NoError(t, err)
	_, err = u.SaveWakeUp(w, now)

	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, u.WakeUps)
	assert.Empty(t, u.PullEvents())
}

func TestUser_CanRequest(t *testing.T) {
	u := newTestUser(t)
	u.Friends = []string{"u2"}

	assert.ErrorIs(t, u.CanRequest("u1"), shared.ErrValidation)
	assert.ErrorIs(t, u.CanRequest("u2"), shared.ErrConflict)
	assert.NoError(t, u.CanRequest("u3"))
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := newTestUser(t)
	_, err := u.AddAlarm("a1", alarm.TimeOfDay{Hour: 7}, alarm.Everyday, "", now)
	require.NoError(t, err)

	c := u.Clone()
	c.Alarms[0].Label = "changed"
	c.Challenges[0].Level = 5
	c.Friends = append(c.Friends, "u9")

	assert.Equal(t, "", u.Alarms[0].Label)
	assert.Equal(t, 1, u.Challenges[0].Level)
	assert.Empty(t, u.Friends)
	assert.Empty(t, c.PullEvents())
}

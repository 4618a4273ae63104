package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/memory"
)

// Monday 21:30 UTC
var now = time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)

func newUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.New(user.NewUserParams{ID: "u1", Email: "ann@example.com", Username: "ann", PasswordHash: "secret-hash"}, now)
	require.NoError(t, err)
	return u
}

func TestBuildUserView_NextAlarm(t *testing.T) {
	u := newUser(t)
	_, err := u.AddAlarm("a1", alarm.TimeOfDay{Hour: 6, Minute: 45}, alarm.NewDays(time.Tuesday), "", now)
	require.NoError(t, err)

	v := BuildUserView(u, now)
	require.NotNil(t, v.NextAlarm)
	assert.Equal(t, "a1", v.NextAlarm.AlarmID)
	assert.Equal(t, "9h 15m", v.NextAlarm.In)
	assert.Nil(t, v.CurrentSleep)
	assert.Equal(t, 1, v.Level.Level)
}

func TestBuildUserView_NoActiveAlarm(t *testing.T) {
	u := newUser(t)
	_, err := u.AddAlarm("a1", alarm.TimeOfDay{Hour: 6}, 0, "", now)
	require.NoError(t, err)

	assert.Nil(t, BuildUserView(u, now).NextAlarm)
}

func TestBuildUserView_Sleep(t *testing.T) {
	u := newUser(t)
	_, err := u.StartSleep("s1", now)
	require.NoError(t, err)
	_, err = u.EndSleep("s1", now.Add(7*time.Hour+20*time.Minute))
	require.NoError(t, err)
	_, err = u.StartSleep("s2", now.Add(24*time.Hour))
	require.NoError(t, err)

	v := BuildUserView(u, now.Add(25*time.Hour))
	require.NotNil(t, v.CurrentSleep)
	assert.Equal(t, "s2", v.CurrentSleep.ID)
	require.NotNil(t, v.LastSleep)
	assert.Equal(t, 7, v.LastSleep.Duration.Hours)
	assert.Equal(t, 20, v.LastSleep.Duration.Minutes)
}

func TestBuildUserView_JSONHidesPassword(t *testing.T) {
	v := BuildUserView(newUser(t), now)
	raw, err := json.Marshal(v)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secret-hash")
	assert.Contains(t, string(raw), `"challenge_progress"`)
	assert.Contains(t, string(raw), `"username":"ann"`)
	assert.Len(t, v.Progress, len(challenge.Names))
	assert.Equal(t, challenge.Bronze, v.Progress[0].Target.Tier)
}

func TestGetUserHandler(t *testing.T) {
	repo := memory.NewUserRepository()
	require.NoError(t, repo.Create(context.Background(), newUser(t)))
	h := NewGetUserHandler(repo, func() time.Time { return now })

	v, err := h.Handle(context.Background(), GetUserQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "ann", v.Username)

	_, err = h.Handle(context.Background(), GetUserQuery{UserID: "nope"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(context.Background(), GetUserQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestChallengeTable(t *testing.T) {
	table := ChallengeTable()
	assert.Equal(t, challenge.MaxLevel, table.MaxLevel)
	require.Len(t, table.Levels, 6)
	for i := 1; i < len(table.Levels); i++ {
		assert.Greater(t, table.Levels[i].RequiredStreak, table.Levels[i-1].RequiredStreak)
		assert.Greater(t, table.Levels[i].XPReward, table.Levels[i-1].XPReward)
	}

	table.Levels[0].XPReward = 0
	assert.NotZero(t, challenge.Table[0].XPReward)
}

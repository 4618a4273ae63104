package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/memory"
)

// Monday 21:30 UTC
var now = time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)

type countingRecorder struct {
	mu sync.Mutex
	n  int
}

func (r *countingRecorder) RecordWakePlanned() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

type subscriptions map[shared.EventType]shared.EventHandler

func (s subscriptions) Subscribe(t shared.EventType, h shared.EventHandler) error {
	s[t] = h
	return nil
}

func setup(t *testing.T) (*memory.UserRepository, *memory.WakeSchedule, *WakePlanner, *countingRecorder) {
	t.Helper()
	repo := memory.NewUserRepository()
	u, err := user.New(user.NewUserParams{ID: "u1", Email: "ann@example.com", Username: "ann", Timezone: "Asia/Almaty"}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))

	schedule := memory.NewWakeSchedule()
	rec := &countingRecorder{}
	planner := NewWakePlanner(repo, schedule, WakePlannerConfig{
		Recorder: rec,
		Now:      func() time.Time { return now },
	})
	return repo, schedule, planner, rec
}

func addAlarm(t *testing.T, repo *memory.UserRepository, at alarm.TimeOfDay, days alarm.Days) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	_, err = u.AddAlarm("a1", at, days, "", now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))
}

func TestWakePlanner_PlansNextOccurrence(t *testing.T) {
	repo, schedule, planner, rec := setup(t)
	// 07:00 Almaty (UTC+5) on Tuesday is 02:00 UTC
	addAlarm(t, repo, alarm.TimeOfDay{Hour: 7}, alarm.NewDays(time.Tuesday))

	require.NoError(t, planner.Handle(shared.NewAlarmsChangedEvent("u1", "a1", shared.AlarmCreated)))

	planned, ok := schedule.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "a1", planned.AlarmID)
	assert.True(t, planned.At.Equal(time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, rec.n)
}

func TestWakePlanner_CancelsWhenNothingCanFire(t *testing.T) {
	repo, schedule, planner, _ := setup(t)
	addAlarm(t, repo, alarm.TimeOfDay{Hour: 7}, alarm.Everyday)
	ctx := context.Background()

	_, ok, err := planner.Replan(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	u, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	off := false
	_, err = u.ToggleAlarm("a1", &off, now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))

	_, ok, err = planner.Replan(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, planned := schedule.Get("u1")
	assert.False(t, planned)
}

func TestWakePlanner_UnknownUserCancels(t *testing.T) {
	_, _, planner, _ := setup(t)
	_, ok, err := planner.Replan(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWakePlanner_StoreErrorIsReturned(t *testing.T) {
	repo, _, planner, _ := setup(t)
	repo.FailNext(errors.New("connection refused"))

	err := planner.Handle(shared.NewAlarmsChangedEvent("u1", "a1", shared.AlarmEdited))
	assert.True(t, shared.IsTransient(err))
}

func TestWakePlanner_Register(t *testing.T) {
	_, _, planner, _ := setup(t)
	subs := subscriptions{}
	require.NoError(t, planner.Register(subs))
	assert.Contains(t, subs, shared.EventAlarmsChanged)
	assert.Contains(t, subs, shared.EventUserRegistered)
}

func TestActivityLog_NeverFails(t *testing.T) {
	log := NewActivityLog(nil)
	assert.NoError(t, log.Handle(shared.NewLevelUpEvent("u1", 1, 2)))
	assert.NoError(t, log.Handle(shared.NewSleepStartedEvent("u1", "s1", now)))
}

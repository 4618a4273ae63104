package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/application/eventhandler"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/memory"
)

// Monday 21:30 UTC
var start = time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	got   []alarm.PlannedWake
	fail  bool
	calls int
}

func (n *recordingNotifier) NotifyWake(_ context.Context, w alarm.PlannedWake) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.fail {
		return errors.New("gateway down")
	}
	n.got = append(n.got, w)
	return nil
}

type env struct {
	repo     *memory.UserRepository
	schedule *memory.WakeSchedule
	planner  *eventhandler.WakePlanner
	clock    *fakeClock
}

func newEnv(t *testing.T, users int) *env {
	t.Helper()
	e := &env{
		repo:     memory.NewUserRepository(),
		schedule: memory.NewWakeSchedule(),
		clock:    &fakeClock{now: start},
	}
	e.planner = eventhandler.NewWakePlanner(e.repo, e.schedule, eventhandler.WakePlannerConfig{Now: e.clock.Now})

	ctx := context.Background()
	for i := 0; i < users; i++ {
		id := fmt.Sprintf("u%d", i)
		u, err := user.New(user.NewUserParams{ID: id, Email: id + "@example.com", Username: id}, start)
		require.NoError(t, err)
		// 06:00 every day; idle users have no alarm
		if i%2 == 0 {
			_, err = u.AddAlarm("a-"+id, alarm.TimeOfDay{Hour: 6}, alarm.Everyday, "", start)
			require.NoError(t, err)
		}
		require.NoError(t, e.repo.Create(ctx, u))
	}
	return e
}

func TestReplanWakeUpsJob(t *testing.T) {
	e := newEnv(t, 10)
	job := NewReplanWakeUpsJob(e.repo, e.planner, nil, ReplanWakeUpsConfig{Concurrency: 3})

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 5, stats.Planned)
	assert.Equal(t, 5, stats.Idle)
	assert.Zero(t, stats.Failed)

	planned, ok := e.schedule.Get("u0")
	require.True(t, ok)
	assert.True(t, planned.At.Equal(time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)))
	_, ok = e.schedule.Get("u1")
	assert.False(t, ok)
}

func TestReplanWakeUpsJob_RetriesTransientListFailure(t *testing.T) {
	e := newEnv(t, 2)
	e.repo.FailNext(errors.New("connection reset"))
	job := NewReplanWakeUpsJob(e.repo, e.planner, nil, DefaultReplanWakeUpsConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, job.LastStats().Total)
}

func TestDueWakeUpsJob_DeliversAndMovesOn(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	_, _, err := e.planner.Replan(ctx, "u0")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	job := NewDueWakeUpsJob(e.schedule, notifier, e.planner, nil, e.clock.Now)

	// nothing due yet
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, notifier.calls)

	e.clock.Advance(9 * time.Hour) // Tuesday 06:30
	require.NoError(t, job.Run(ctx))
	require.Len(t, notifier.got, 1)
	assert.Equal(t, "u0", notifier.got[0].UserID)
	assert.Equal(t, "a-u0", notifier.got[0].AlarmID)

	next, ok := e.schedule.Get("u0")
	require.True(t, ok)
	assert.True(t, next.At.Equal(time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC)))

	// the fired entry is gone
	require.NoError(t, job.Run(ctx))
	assert.Len(t, notifier.got, 1)
}

func TestDueWakeUpsJob_FailedDeliveryStillReplans(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	_, _, err := e.planner.Replan(ctx, "u0")
	require.NoError(t, err)

	notifier := &recordingNotifier{fail: true}
	job := NewDueWakeUpsJob(e.schedule, notifier, e.planner, nil, e.clock.Now)

	e.clock.Advance(9 * time.Hour)
	assert.Error(t, job.Run(ctx))
	assert.Equal(t, 1, notifier.calls)

	next, ok := e.schedule.Get("u0")
	require.True(t, ok)
	assert.True(t, next.At.After(e.clock.Now()))
}

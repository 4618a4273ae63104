// Package eventhandler contains reactions to domain events.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// WAKE PLANNER
// Keeps the wake schedule in step with each user's alarms: after any alarm
// change the user's next occurrence is written to the schedule, or removed
// when no alarm can fire.
// ═══════════════════════════════════════════════════════════════════════════

// DefaultPlanTimeout bounds one replan when called from the event bus.
const DefaultPlanTimeout = 5 * time.Second

// UserReader loads users.
type UserReader interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// PlanRecorder counts planned wake-ups.
type PlanRecorder interface {
	RecordWakePlanned()
}

// Subscriber registers handlers for one event type.
type Subscriber interface {
	Subscribe(eventType shared.EventType, handler shared.EventHandler) error
}

// WakePlanner replans a user's next wake-up.
type WakePlanner struct {
	users    UserReader
	schedule alarm.WakeSchedule
	recorder PlanRecorder
	logger   *logger.Logger
	now      func() time.Time
	timeout  time.Duration
}

// WakePlannerConfig holds optional collaborators.
type WakePlannerConfig struct {
	Recorder PlanRecorder
	Logger   *logger.Logger
	Now      func() time.Time
	Timeout  time.Duration
}

// NewWakePlanner creates a WakePlanner.
func NewWakePlanner(users UserReader, schedule alarm.WakeSchedule, config WakePlannerConfig) *WakePlanner {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultPlanTimeout
	}
	return &WakePlanner{
		users:    users,
		schedule: schedule,
		recorder: config.Recorder,
		logger:   config.Logger.Named("wake_planner"),
		now:      config.Now,
		timeout:  config.Timeout,
	}
}

// Register subscribes the planner to the events that can move a user's next
// wake-up.
func (p *WakePlanner) Register(bus Subscriber) error {
	for _, t := range []shared.EventType{shared.EventAlarmsChanged, shared.EventUserRegistered} {
		if err := bus.Subscribe(t, p.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (p *WakePlanner) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, _, err := p.Replan(ctx, event.AggregateID())
	return err
}

// Replan writes the user's next occurrence to the schedule and returns it.
// ok is false when the user has no alarm that can fire; any stale plan is
// cancelled in that case.
func (p *WakePlanner) Replan(ctx context.Context, userID string) (occ alarm.Occurrence, ok bool, err error) {
	u, err := p.users.FindByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return alarm.Occurrence{}, false, p.schedule.Cancel(ctx, userID)
		}
		return alarm.Occurrence{}, false, err
	}

	occ, ok = u.NextAlarm(p.now())
	if !ok {
		if err := p.schedule.Cancel(ctx, userID); err != nil {
			return alarm.Occurrence{}, false, fmt.Errorf("cancel wake for %s: %w", userID, err)
		}
		p.logger.Debug("no active alarm", logger.UserID(userID))
		return alarm.Occurrence{}, false, nil
	}

	if err := p.schedule.Plan(ctx, userID, occ); err != nil {
		return alarm.Occurrence{}, false, fmt.Errorf("plan wake for %s: %w", userID, err)
	}
	if p.recorder != nil {
		p.recorder.RecordWakePlanned()
	}
	p.logger.Debug("wake planned",
		logger.UserID(userID),
		logger.AlarmID(occ.AlarmID),
		logger.Time("at", occ.At),
	)
	return occ, true, nil
}

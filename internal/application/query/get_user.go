// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/leveling"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER QUERY
// Returns the user aggregate together with the values the app shows on its
// home screen: the next alarm, level progress and challenge progress.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserQuery selects a user by id.
type GetUserQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetUserQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("user", "GetUser", shared.ErrValidation, "user_id is required")
	}
	return nil
}

// UserView is the aggregate as returned to clients.
type UserView struct {
	*user.User

	Level        leveling.Progress `json:"level"`
	NextAlarm    *NextAlarmView    `json:"next_alarm,omitempty"`
	CurrentSleep *sleep.Session    `json:"current_sleep,omitempty"`
	LastSleep    *SleepView        `json:"last_sleep,omitempty"`
	Progress     []ChallengeView   `json:"challenge_progress"`
}

// NextAlarmView is the soonest firing alarm.
type NextAlarmView struct {
	AlarmID string    `json:"alarm_id"`
	At      time.Time `json:"at"`

	// In is the remaining time as "Xh Ym".
	In string `json:"in"`
}

// SleepView is a closed session with its display duration.
type SleepView struct {
	Session  sleep.Session  `json:"session"`
	Duration sleep.Duration `json:"duration"`
}

// ChallengeView is one challenge with the row it is working toward.
type ChallengeView struct {
	challenge.Challenge
	Target challenge.Level `json:"target"`
}

// BuildUserView derives the view of u at now.
func BuildUserView(u *user.User, now time.Time) *UserView {
	v := &UserView{
		User:     u,
		Level:    u.Level(),
		Progress: make([]ChallengeView, 0, len(u.Challenges)),
	}

	if occ, ok := u.NextAlarm(now); ok {
		v.NextAlarm = &NextAlarmView{
			AlarmID: occ.AlarmID,
			At:      occ.At.In(u.Location()),
			In:      alarm.Until(now, occ),
		}
	}

	if open, ok := u.CurrentSleep(); ok {
		v.CurrentSleep = &open
	}
	if closed := u.Sessions.ClosedNewestFirst(); len(closed) > 0 {
		if d, err := sleep.DurationOf(closed[0]); err == nil {
			v.LastSleep = &SleepView{Session: closed[0], Duration: d}
		}
	}

	for _, c := range u.Challenges {
		v.Progress = append(v.Progress, ChallengeView{Challenge: c, Target: c.Current()})
	}
	return v
}

// UserReader is the read side of user.Repository.
type UserReader interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// GetUserHandler handles GetUserQuery.
type GetUserHandler struct {
	users UserReader
	now   func() time.Time
}

// NewGetUserHandler creates a GetUserHandler. A nil now uses the wall clock.
func NewGetUserHandler(users UserReader, now func() time.Time) *GetUserHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &GetUserHandler{users: users, now: now}
}

// Handle loads the user and builds the view.
func (h *GetUserHandler) Handle(ctx context.Context, q GetUserQuery) (*UserView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	u, err := h.users.FindByID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return BuildUserView(u, h.now()), nil
}

package command

import (
	"context"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLEEP COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// SessionResult is the updated user plus the affected session.
type SessionResult struct {
	User    *user.User
	Session sleep.Session
}

// StartSleepCommand opens a sleep session at the current time.
type StartSleepCommand struct {
	UserID string
}

// StartSleepHandler handles StartSleepCommand.
type StartSleepHandler struct {
	deps Deps
}

// NewStartSleepHandler creates a StartSleepHandler.
func NewStartSleepHandler(deps Deps) *StartSleepHandler {
	return &StartSleepHandler{deps: deps.withDefaults()}
}

// Handle opens the session. A second open session is a conflict.
func (h *StartSleepHandler) Handle(ctx context.Context, cmd StartSleepCommand) (*SessionResult, error) {
	if err := requireUserID("StartSleep", cmd.UserID); err != nil {
		return nil, err
	}

	var started sleep.Session
	u, err := h.deps.mutate(ctx, "StartSleep", cmd.UserID, func(u *user.User) error {
		var err error
		started, err = u.StartSleep(h.deps.NewID(), h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{User: u, Session: started}, nil
}

// EndSleepCommand closes a session. An empty SessionID closes the open one.
type EndSleepCommand struct {
	UserID    string
	SessionID string
}

// EndSleepHandler handles EndSleepCommand.
type EndSleepHandler struct {
	deps Deps
}

// NewEndSleepHandler creates an EndSleepHandler.
func NewEndSleepHandler(deps Deps) *EndSleepHandler {
	return &EndSleepHandler{deps: deps.withDefaults()}
}

// Handle ends the session and re-evaluates challenges.
func (h *EndSleepHandler) Handle(ctx context.Context, cmd EndSleepCommand) (*SessionResult, error) {
	if err := requireUserID("EndSleep", cmd.UserID); err != nil {
		return nil, err
	}

	var ended sleep.Session
	u, err := h.deps.mutate(ctx, "EndSleep", cmd.UserID, func(u *user.User) error {
		id := cmd.SessionID
		if id == "" {
			open, ok := u.CurrentSleep()
			if !ok {
				return shared.ErrSessionNotFound
			}
			id = open.ID
		}
		var err error
		ended, err = u.EndSleep(id, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{User: u, Session: ended}, nil
}

// SaveWakeUpCommand records a wake-up mini-game result.
type SaveWakeUpCommand struct {
	UserID string

	// SessionID defaults to the latest session.
	SessionID    string
	Game         string
	SnoozeCount  int
	SolveSeconds int
}

// SaveWakeUpHandler handles SaveWakeUpCommand.
type SaveWakeUpHandler struct {
	deps Deps
}

// NewSaveWakeUpHandler creates a SaveWakeUpHandler.
func NewSaveWakeUpHandler(deps Deps) *SaveWakeUpHandler {
	return &SaveWakeUpHandler{deps: deps.withDefaults()}
}

// Handle validates and stores the wake-up.
func (h *SaveWakeUpHandler) Handle(ctx context.Context, cmd SaveWakeUpCommand) (*UserResult, error) {
	if err := requireUserID("SaveWakeUp", cmd.UserID); err != nil {
		return nil, err
	}

	w, err := sleep.NewWakeUp(h.deps.NewID(), cmd.SessionID, h.deps.Now(), sleep.Game(cmd.Game), cmd.SnoozeCount, cmd.SolveSeconds)
	if err != nil {
		return nil, err
	}

	u, err := h.deps.mutate(ctx, "SaveWakeUp", cmd.UserID, func(u *user.User) error {
		_, err := u.SaveWakeUp(w, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &UserResult{User: u}, nil
}

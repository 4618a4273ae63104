package command

import (
	"context"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALARM COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// AlarmResult is the updated user plus the affected alarm.
type AlarmResult struct {
	User  *user.User
	Alarm alarm.Alarm
}

// CreateAlarmCommand adds an alarm.
type CreateAlarmCommand struct {
	UserID string
	Hour   int
	Minute int

	// Days are weekday names ("mon", "tuesday", ...).
	Days  []string
	Label string
}

// CreateAlarmHandler handles CreateAlarmCommand.
type CreateAlarmHandler struct {
	deps Deps
}

// NewCreateAlarmHandler creates a CreateAlarmHandler.
func NewCreateAlarmHandler(deps Deps) *CreateAlarmHandler {
	return &CreateAlarmHandler{deps: deps.withDefaults()}
}

// Handle parses the input and appends the alarm.
func (h *CreateAlarmHandler) Handle(ctx context.Context, cmd CreateAlarmCommand) (*AlarmResult, error) {
	if err := requireUserID("CreateAlarm", cmd.UserID); err != nil {
		return nil, err
	}
	at, err := alarm.NewTimeOfDay(cmd.Hour, cmd.Minute)
	if err != nil {
		return nil, err
	}
	days, err := alarm.ParseDays(cmd.Days)
	if err != nil {
		return nil, err
	}

	var created alarm.Alarm
	u, err := h.deps.mutate(ctx, "CreateAlarm", cmd.UserID, func(u *user.User) error {
		var err error
		created, err = u.AddAlarm(h.deps.NewID(), at, days, cmd.Label, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AlarmResult{User: u, Alarm: created}, nil
}

// EditAlarmCommand changes an alarm. Nil fields stay as they are; Hour and
// Minute must be given together.
type EditAlarmCommand struct {
	UserID  string
	AlarmID string
	Hour    *int
	Minute  *int
	Days    []string
	Label   *string
}

// Validate validates the command.
func (c EditAlarmCommand) Validate() error {
	if err := requireUserID("EditAlarm", c.UserID); err != nil {
		return err
	}
	if c.AlarmID == "" {
		return shared.NewDomainError("alarm", "Edit", shared.ErrValidation, "alarm_id is required")
	}
	if (c.Hour == nil) != (c.Minute == nil) {
		return shared.NewDomainError("alarm", "Edit", shared.ErrValidation, "hour and minute must be given together")
	}
	return nil
}

// EditAlarmHandler handles EditAlarmCommand.
type EditAlarmHandler struct {
	deps Deps
}

// NewEditAlarmHandler creates an EditAlarmHandler.
func NewEditAlarmHandler(deps Deps) *EditAlarmHandler {
	return &EditAlarmHandler{deps: deps.withDefaults()}
}

// Handle applies the change.
func (h *EditAlarmHandler) Handle(ctx context.Context, cmd EditAlarmCommand) (*AlarmResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var change user.AlarmChange
	if cmd.Hour != nil {
		at, err := alarm.NewTimeOfDay(*cmd.Hour, *cmd.Minute)
		if err != nil {
			return nil, err
		}
		change.Time = &at
	}
	if cmd.Days != nil {
		days, err := alarm.ParseDays(cmd.Days)
		if err != nil {
			return nil, err
		}
		change.Days = &days
	}
	change.Label = cmd.Label

	var edited alarm.Alarm
	u, err := h.deps.mutate(ctx, "EditAlarm", cmd.UserID, func(u *user.User) error {
		var err error
		edited, err = u.EditAlarm(cmd.AlarmID, change, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AlarmResult{User: u, Alarm: edited}, nil
}

// ToggleAlarmCommand enables or disables an alarm. A nil Enabled flips it.
type ToggleAlarmCommand struct {
	UserID  string
	AlarmID string
	Enabled *bool
}

// ToggleAlarmHandler handles ToggleAlarmCommand.
type ToggleAlarmHandler struct {
	deps Deps
}

// NewToggleAlarmHandler creates a ToggleAlarmHandler.
func NewToggleAlarmHandler(deps Deps) *ToggleAlarmHandler {
	return &ToggleAlarmHandler{deps: deps.withDefaults()}
}

// Handle toggles the alarm.
func (h *ToggleAlarmHandler) Handle(ctx context.Context, cmd ToggleAlarmCommand) (*AlarmResult, error) {
	if err := requireUserID("ToggleAlarm", cmd.UserID); err != nil {
		return nil, err
	}

	var toggled alarm.Alarm
	u, err := h.deps.mutate(ctx, "ToggleAlarm", cmd.UserID, func(u *user.User) error {
		var err error
		toggled, err = u.ToggleAlarm(cmd.AlarmID, cmd.Enabled, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AlarmResult{User: u, Alarm: toggled}, nil
}

// DeleteAlarmCommand removes an alarm.
type DeleteAlarmCommand struct {
	UserID  string
	AlarmID string
}

// DeleteAlarmHandler handles DeleteAlarmCommand.
type DeleteAlarmHandler struct {
	deps Deps
}

// NewDeleteAlarmHandler creates a DeleteAlarmHandler.
func NewDeleteAlarmHandler(deps Deps) *DeleteAlarmHandler {
	return &DeleteAlarmHandler{deps: deps.withDefaults()}
}

// Handle deletes the alarm.
func (h *DeleteAlarmHandler) Handle(ctx context.Context, cmd DeleteAlarmCommand) (*UserResult, error) {
	if err := requireUserID("DeleteAlarm", cmd.UserID); err != nil {
		return nil, err
	}

	u, err := h.deps.mutate(ctx, "DeleteAlarm", cmd.UserID, func(u *user.User) error {
		return u.DeleteAlarm(cmd.AlarmID, h.deps.Now())
	})
	if err != nil {
		return nil, err
	}
	return &UserResult{User: u}, nil
}

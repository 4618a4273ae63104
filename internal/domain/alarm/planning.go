package alarm

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WAKE PLANNING PORTS
// Implementations live in infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// PlannedWake is the next wake-up handed to the notification side.
type PlannedWake struct {
	UserID  string    `json:"user_id"`
	AlarmID string    `json:"alarm_id"`
	At      time.Time `json:"at"`
}

// WakeSchedule stores at most one planned wake-up per user.
type WakeSchedule interface {
	// Plan replaces the user's planned wake-up.
	Plan(ctx context.Context, userID string, occ Occurrence) error

	// Cancel removes the user's planned wake-up. Cancelling nothing is a no-op.
	Cancel(ctx context.Context, userID string) error

	// Due returns planned wake-ups at or before now, earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]PlannedWake, error)
}

// WakeNotifier delivers a due wake-up to the user's device.
type WakeNotifier interface {
	NotifyWake(ctx context.Context, w PlannedWake) error
}

package sleep

import (
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

// Game is the mini-game the user solved to dismiss the alarm.
type Game string

const (
	GameMath   Game = "math"
	GameMemory Game = "memory"
	GameShake  Game = "shake"
	GameTyping Game = "typing"
)

// IsValid checks the game is one the client ships.
func (g Game) IsValid() bool {
	switch g {
	case GameMath, GameMemory, GameShake, GameTyping:
		return true
	}
	return false
}

// WakeUp is the recorded result of a wake-up mini-game.
type WakeUp struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	At           time.Time `json:"at"`
	Game         Game      `json:"game"`
	SnoozeCount  int       `json:"snooze_count"`
	SolveSeconds int       `json:"solve_seconds"`
}

// NewWakeUp validates a wake-up result.
func NewWakeUp(id, sessionID string, at time.Time, game Game, snoozeCount, solveSeconds int) (WakeUp, error) {
	if !game.IsValid() {
		return WakeUp{}, shared.ErrInvalidWakeUpGame
	}
	if snoozeCount < 0 || solveSeconds < 0 {
		return WakeUp{}, shared.NewDomainError("sleep", "SaveWakeUp", shared.ErrValidation, "counts must not be negative")
	}
	return WakeUp{
		ID:           id,
		SessionID:    sessionID,
		At:           at,
		Game:         game,
		SnoozeCount:  snoozeCount,
		SolveSeconds: solveSeconds,
	}, nil
}

// Snoozed reports whether the alarm was snoozed before the game was solved.
func (w WakeUp) Snoozed() bool {
	return w.SnoozeCount > 0
}

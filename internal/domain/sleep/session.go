// Package sleep tracks sleep sessions and wake-up results.
//
// A user has an append-only History of sessions. At most one session in the
// history is open (no end time) at any moment; History enforces this before
// mutating anything.
package sleep

import (
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

// Session is one night of sleep.
type Session struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Snoozed   bool       `json:"snoozed"`
}

// IsOpen reports whether the session has not been ended yet.
func (s Session) IsOpen() bool {
	return s.EndTime == nil
}

// Elapsed is the raw end-start difference of a closed session.
func (s Session) Elapsed() (time.Duration, error) {
	if s.IsOpen() {
		return 0, shared.ErrSessionStillOpen
	}
	return s.EndTime.Sub(s.StartTime), nil
}

// Duration is a closed session's length split for display.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// DurationOf splits a closed session into whole hours and remaining minutes.
func DurationOf(s Session) (Duration, error) {
	d, err := s.Elapsed()
	if err != nil {
		return Duration{}, err
	}
	return Duration{
		Hours:   int(d / time.Hour),
		Minutes: int((d % time.Hour) / time.Minute),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// History is a user's sessions in the order they were started.
type History []Session

// CurrentOpen returns the open session, if any.
func (h History) CurrentOpen() (Session, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].IsOpen() {
			return h[i], true
		}
	}
	return Session{}, false
}

// Start opens a new session beginning at now.
func (h *History) Start(id string, now time.Time) (Session, error) {
	if _, open := h.CurrentOpen(); open {
		return Session{}, shared.ErrSessionAlreadyOpen
	}
	s := Session{ID: id, StartTime: now}
	*h = append(*h, s)
	return s, nil
}

// End closes the session with the given id at now. A closed session is never
// overwritten.
func (h History) End(id string, now time.Time) (Session, error) {
	i := h.indexOf(id)
	if i < 0 {
		return Session{}, shared.ErrSessionNotFound
	}
	if !h[i].IsOpen() {
		return Session{}, shared.ErrSessionAlreadyClosed
	}
	if now.Before(h[i].StartTime) {
		return Session{}, shared.ErrEndBeforeStart
	}
	end := now
	h[i].EndTime = &end
	return h[i], nil
}

// MarkSnoozed flags the session with the given id as snoozed.
func (h History) MarkSnoozed(id string) error {
	i := h.indexOf(id)
	if i < 0 {
		return shared.ErrSessionNotFound
	}
	h[i].Snoozed = true
	return nil
}

// Has reports whether a session with the given id exists.
func (h History) Has(id string) bool {
	return h.indexOf(id) >= 0
}

// Latest returns the most recently started session.
func (h History) Latest() (Session, bool) {
	if len(h) == 0 {
		return Session{}, false
	}
	return h[len(h)-1], true
}

// ClosedNewestFirst lists closed sessions from the most recent start backward.
func (h History) ClosedNewestFirst() []Session {
	out := make([]Session, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		if !h[i].IsOpen() {
			out = append(out, h[i])
		}
	}
	return out
}

// Clone returns a deep copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, s := range h {
		if s.EndTime != nil {
			end := *s.EndTime
			s.EndTime = &end
		}
		out[i] = s
	}
	return out
}

func (h History) indexOf(id string) int {
	for i := range h {
		if h[i].ID == id {
			return i
		}
	}
	return -1
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
)

// WakeSchedule implements alarm.WakeSchedule in memory.
type WakeSchedule struct {
	mu      sync.Mutex
	planned map[string]alarm.PlannedWake
}

// NewWakeSchedule creates an empty schedule.
func NewWakeSchedule() *WakeSchedule {
	return &WakeSchedule{planned: make(map[string]alarm.PlannedWake)}
}

// Plan replaces the user's entry.
func (s *WakeSchedule) Plan(ctx context.Context, userID string, occ alarm.Occurrence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planned[userID] = alarm.PlannedWake{UserID: userID, AlarmID: occ.AlarmID, At: occ.At.Truncate(time.Second)}
	return nil
}

// Cancel drops the user's entry.
func (s *WakeSchedule) Cancel(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.planned, userID)
	return nil
}

// Due returns entries at or before now, earliest first.
func (s *WakeSchedule) Due(ctx context.Context, now time.Time, limit int) ([]alarm.PlannedWake, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]alarm.PlannedWake, 0)
	for _, w := range s.planned {
		if !w.At.After(now) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].At.Before(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the user's planned wake-up.
func (s *WakeSchedule) Get(userID string) (alarm.PlannedWake, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.planned[userID]
	return w, ok
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DUE WAKE-UPS JOB
// ══════════════════════════════════════════════════════════════════════════════

// DueWakeUpsJob hands every planned wake-up that has come due to the
// notifier and then plans the user's following occurrence.
type DueWakeUpsJob struct {
	schedule alarm.WakeSchedule
	notifier alarm.WakeNotifier
	planner  Replanner
	logger   *logger.Logger
	now      func() time.Time
	batch    int
}

// DefaultDueBatch bounds how many wake-ups one run delivers.
const DefaultDueBatch = 500

// NewDueWakeUpsJob creates the job. A nil now uses the wall clock.
func NewDueWakeUpsJob(schedule alarm.WakeSchedule, notifier alarm.WakeNotifier, planner Replanner, log *logger.Logger, now func() time.Time) *DueWakeUpsJob {
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DueWakeUpsJob{
		schedule: schedule,
		notifier: notifier,
		planner:  planner,
		logger:   log.With(logger.String("job", "due_wakeups")),
		now:      now,
		batch:    DefaultDueBatch,
	}
}

// WithBatch sets how many wake-ups one run delivers. Values below one keep
// the current batch.
func (j *DueWakeUpsJob) WithBatch(n int) *DueWakeUpsJob {
	if n > 0 {
		j.batch = n
	}
	return j
}

// Name returns the job name.
func (j *DueWakeUpsJob) Name() string {
	return "due_wakeups"
}

// Description returns a human-readable description.
func (j *DueWakeUpsJob) Description() string {
	return "Delivers due wake-ups and plans each user's next one"
}

// Run executes the job. A failed delivery is logged and the user is still
// moved on to the next occurrence, so one bad device cannot stall the queue.
func (j *DueWakeUpsJob) Run(ctx context.Context) error {
	now := j.now()
	due, err := j.schedule.Due(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("failed to read due wake-ups: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var delivered, failed int
	for _, w := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := j.logger.With(logger.UserID(w.UserID), logger.AlarmID(w.AlarmID), logger.Time("at", w.At))

		if err := j.notifier.NotifyWake(ctx, w); err != nil {
			failed++
			log.Error("wake delivery failed", logger.Err(err))
		} else {
			delivered++
			log.Info("wake delivered", logger.Duration("lag", now.Sub(w.At)))
		}

		if _, _, err := j.planner.Replan(ctx, w.UserID); err != nil {
			// drop the fired entry so the next run does not deliver it again
			log.Error("replan after wake failed", logger.Err(err))
			if err := j.schedule.Cancel(ctx, w.UserID); err != nil {
				log.Error("cancel after wake failed", logger.Err(err))
			}
		}
	}

	j.logger.Info("due wake-ups processed", logger.Int("delivered", delivered), logger.Int("failed", failed))
	if failed == len(due) {
		return fmt.Errorf("all %d wake deliveries failed", failed)
	}
	return nil
}

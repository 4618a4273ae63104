// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
	"github.com/wakeup-hub/wakeup-hub/pkg/retry"
)

// Replanner recomputes and stores one user's next wake-up.
type Replanner interface {
	Replan(ctx context.Context, userID string) (alarm.Occurrence, bool, error)
}

// UserLister lists every user id.
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPLAN WAKE-UPS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReplanWakeUpsJob rebuilds the wake schedule for every user. It repairs
// plans lost to a missed event, a flushed cache, or a time-zone rule change.
type ReplanWakeUpsJob struct {
	users   UserLister
	planner Replanner
	retrier *retry.Retrier
	logger  *logger.Logger
	config  ReplanWakeUpsConfig

	lastStats atomic.Value // *ReplanStats
}

// ReplanWakeUpsConfig contains configuration for the job.
type ReplanWakeUpsConfig struct {
	// Concurrency is the number of users replanned in parallel.
	Concurrency int

	// MaxFailureRate above which the run is reported as failed.
	MaxFailureRate float64
}

// DefaultReplanWakeUpsConfig returns sensible defaults.
func DefaultReplanWakeUpsConfig() ReplanWakeUpsConfig {
	return ReplanWakeUpsConfig{
		Concurrency:    8,
		MaxFailureRate: 0.5,
	}
}

// ReplanStats contains statistics from one run.
type ReplanStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Planned   int
	Idle      int
	Failed    int
}

// NewReplanWakeUpsJob creates the job.
func NewReplanWakeUpsJob(users UserLister, planner Replanner, log *logger.Logger, config ReplanWakeUpsConfig) *ReplanWakeUpsJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = 0.5
	}
	log = log.With(logger.String("job", "replan_wakeups"))

	return &ReplanWakeUpsJob{
		users:   users,
		planner: planner,
		retrier: retry.New(retry.JobPolicy(shared.IsTransient, func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying", logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
		})),
		logger: log,
		config: config,
	}
}

// Name returns the job name.
func (j *ReplanWakeUpsJob) Name() string {
	return "replan_wakeups"
}

// Description returns a human-readable description.
func (j *ReplanWakeUpsJob) Description() string {
	return "Recomputes every user's next wake-up and stores it in the wake schedule"
}

// Run executes the job.
func (j *ReplanWakeUpsJob) Run(ctx context.Context) error {
	stats := &ReplanStats{StartedAt: time.Now()}

	ids, err := retry.Value(ctx, j.retrier, j.users.ListIDs)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	stats.Total = len(ids)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, j.config.Concurrency)
	)

loop:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			break loop
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var ok bool
			err := j.retrier.Do(ctx, func(ctx context.Context) error {
				var err error
				_, ok, err = j.planner.Replan(ctx, userID)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				j.logger.Error("replan failed", logger.UserID(userID), logger.Err(err))
			case ok:
				stats.Planned++
			default:
				stats.Idle++
			}
		}(id)
	}
	wg.Wait()

	stats.Duration = time.Since(stats.StartedAt)
	j.lastStats.Store(stats)

	j.logger.Info("replan finished",
		logger.Int("total", stats.Total),
		logger.Int("planned", stats.Planned),
		logger.Int("idle", stats.Idle),
		logger.Int("failed", stats.Failed),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	if stats.Total > 0 && float64(stats.Failed)/float64(stats.Total) > j.config.MaxFailureRate {
		return fmt.Errorf("replan failed for %d of %d users", stats.Failed, stats.Total)
	}
	return nil
}

// LastStats returns statistics from the last run, or nil.
func (j *ReplanWakeUpsJob) LastStats() *ReplanStats {
	stats, _ := j.lastStats.Load().(*ReplanStats)
	return stats
}

// Package scheduler runs the worker's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is one unit of periodic work. Run's context ends when the scheduler
// stops or the job timeout passes.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Recorder receives one observation per job run.
type Recorder interface {
	RecordJob(name string, d time.Duration, success bool)
}

// JobResult describes one finished run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error

	// Manual is set for RunNow.
	Manual bool
}

func newJobResult(name string, started time.Time, err error, manual bool) *JobResult {
	done := time.Now()
	return &JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: done,
		Duration:    done.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler wraps a cron runner. A run that is still going when its next
// tick arrives makes the tick a no-op, and a panicking job is recovered.
type Scheduler struct {
	mu sync.RWMutex

	cron       *cron.Cron
	logger     *logger.Logger
	recorder   Recorder
	jobTimeout time.Duration

	jobs    map[string]*scheduledJob
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type scheduledJob struct {
	job       Job
	spec      string
	entryID   cron.EntryID
	runCount  int64
	failCount int64
	last      *JobResult
}

// SchedulerConfig configures NewScheduler. Location defaults to UTC; a zero
// JobTimeout leaves runs unbounded.
type SchedulerConfig struct {
	Logger     *logger.Logger
	Location   *time.Location
	Recorder   Recorder
	JobTimeout time.Duration
}

// DefaultSchedulerConfig bounds each run to ten minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:     logger.Default(),
		Location:   time.UTC,
		JobTimeout: 10 * time.Minute,
	}
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	log := config.Logger.Named("scheduler")
	cl := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:     log,
		recorder:   config.Recorder,
		jobTimeout: config.JobTimeout,
		jobs:       make(map[string]*scheduledJob),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job on a standard five-field cron spec or a descriptor
// such as "@every 1m".
func (s *Scheduler) Register(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, spec: spec}
	id, err := s.cron.AddFunc(spec, func() { s.runJob(sj, false) })
	if err != nil {
		return fmt.Errorf("%w %q for %s: %v", ErrInvalidSpec, spec, name, err)
	}
	sj.entryID = id
	s.jobs[name] = sj

	s.logger.Info("job registered",
		logger.String("job", name),
		logger.String("description", job.Description()),
		logger.String("schedule", spec),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", logger.Int("jobs_count", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runJob(sj *scheduledJob, manual bool) *JobResult {
	ctx := s.ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	return s.execute(ctx, sj, manual)
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) *JobResult {
	name := sj.job.Name()
	log := s.logger.With(logger.String("job", name), logger.Bool("manual", manual))
	log.Debug("job started")

	started := time.Now()
	err := sj.job.Run(ctx)
	result := newJobResult(name, started, err, manual)

	if s.recorder != nil {
		s.recorder.RecordJob(name, result.Duration, result.Success)
	}

	s.mu.Lock()
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.last = result
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", logger.Duration("duration", result.Duration), logger.Err(err))
	} else {
		log.Info("job completed", logger.Duration("duration", result.Duration))
	}
	return result
}

// RunNow runs a job once on the caller's goroutine, outside its schedule and
// without the overlap guard.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	sj, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, sj, true)
	return result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is a registered job with its cron entry and run counters.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns every job, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		entry := s.cron.Entry(sj.entryID)
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.spec,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  sj.last,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// cronLogger routes cron's own messages to the structured logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Zap().Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Zap().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrInvalidSpec             = errors.New("invalid schedule")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// Package app assembles the service from configuration. The serve, worker and
// migrate commands share it so every process is wired the same way.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/wakeup-hub/wakeup-hub/config"
	"github.com/wakeup-hub/wakeup-hub/internal/application/command"
	"github.com/wakeup-hub/wakeup-hub/internal/application/eventhandler"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/external/push"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/messaging"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/metrics"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/memory"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/postgres"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/redis"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/scheduler"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/wakeup-hub/wakeup-hub/internal/interface/http"
	"github.com/wakeup-hub/wakeup-hub/internal/interface/http/handlers"
	"github.com/wakeup-hub/wakeup-hub/pkg/circuitbreaker"
	"github.com/wakeup-hub/wakeup-hub/pkg/keylock"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// EventBus is the bus every process publishes to and subscribes on.
type EventBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// RUNTIME
// ══════════════════════════════════════════════════════════════════════════════

// Runtime holds the infrastructure built from one configuration.
type Runtime struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Health  *handlers.CompositeHealthChecker

	Users    user.Repository
	Locker   command.Locker
	Schedule alarm.WakeSchedule
	Bus      EventBus

	// DB and Cache are nil when the matching backend is not configured.
	DB    *postgres.Connection
	Cache *redis.Cache

	closers []func()
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// New connects the stores and builds the shared components. The caller must
// Close the runtime.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Health:  handlers.NewCompositeHealthChecker(cfg.App.Version),
	}

	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.openRedis(); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.openBus(); err != nil {
		rt.Close()
		return nil, err
	}

	return rt, nil
}

// breakerHook exports breaker transitions as a gauge and a log line.
func (rt *Runtime) breakerHook(name string, from, to circuitbreaker.State) {
	rt.Metrics.SetBreakerState(name, int(to))
	rt.Logger.Warn("circuit breaker state changed",
		logger.String("breaker", name),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
}

func (rt *Runtime) openStore(ctx context.Context) error {
	cfg := rt.Config.Database

	if cfg.Driver == config.DriverMemory {
		rt.Logger.Warn("using in-memory user store; data is lost on exit")
		rt.Users = memory.NewUserRepository()
		return nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.URL
	pgCfg.MaxConns = int32(cfg.MaxConns)
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	rt.Logger.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.DB = conn
	rt.closers = append(rt.closers, func() {
		rt.Logger.Info("closing database connection...")
		conn.Close()
	})
	rt.Health.AddCheck("postgres", handlers.PingCheck(conn))

	breaker := circuitbreaker.DatabaseBreaker(postgres.IsInfrastructureError, rt.breakerHook)
	rt.Users = postgres.NewUserRepository(conn, breaker, cfg.QueryTimeout)
	return nil
}

func (rt *Runtime) openRedis() error {
	cfg := rt.Config.Redis

	if cfg.Disabled {
		rt.Logger.Warn("redis disabled; locks, schedule and events stay in this process")
		rt.Locker = keylock.New()
		rt.Schedule = memory.NewWakeSchedule()
		return nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Host
	redisCfg.Port = cfg.Port
	redisCfg.Password = cfg.Password
	redisCfg.DB = cfg.DB
	redisCfg.PoolSize = cfg.PoolSize
	redisCfg.MinIdleConns = cfg.MinIdleConns
	redisCfg.DialTimeout = cfg.DialTimeout
	redisCfg.ReadTimeout = cfg.ReadTimeout
	redisCfg.WriteTimeout = cfg.WriteTimeout

	rt.Logger.Info("connecting to Redis...", logger.String("addr", redisCfg.Addr()))
	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	rt.Cache = cache
	rt.closers = append(rt.closers, func() {
		rt.Logger.Info("closing redis connection...")
		_ = cache.Close()
	})
	rt.Health.AddOptionalCheck("redis", handlers.PingCheck(cache))

	rt.Locker = redis.NewLocker(cache, cfg.LockTTL, rt.Logger)
	rt.Schedule = redis.NewWakeSchedule(cache)

	if rt.Config.Features.IsEnabled(config.FeatureUserCache, nil) {
		breaker := circuitbreaker.CacheBreaker(redis.IsCacheFailure, rt.breakerHook)
		userCache := redis.NewUserCache(cache, cfg.CacheTTL, breaker)
		rt.Users = redis.NewCachedRepository(rt.Users, userCache, rt.Logger)
	}
	return nil
}

func (rt *Runtime) openBus() error {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = rt.Logger
	local.Recorder = rt.Metrics

	if rt.Cache == nil {
		bus := messaging.NewInMemoryEventBus(local)
		rt.Bus = bus
		rt.closers = append(rt.closers, func() {
			rt.Logger.Info("closing event bus...")
			_ = bus.Close()
		})
		return nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		PubSub:  messaging.NewGoRedisPubSub(rt.Cache.Client()),
		Channel: rt.Config.Redis.EventChannel,
		Local:   local,
		Logger:  rt.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	rt.Bus = bus
	rt.closers = append(rt.closers, func() {
		rt.Logger.Info("closing event bus...")
		_ = bus.Close()
	})
	return nil
}

// Close releases everything New opened, newest first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	_ = rt.Logger.Sync()
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENTS
// ══════════════════════════════════════════════════════════════════════════════

// CommandDeps returns the collaborators of the command handlers.
func (rt *Runtime) CommandDeps() command.Deps {
	return command.Deps{
		Users:       rt.Users,
		Locker:      rt.Locker,
		Publisher:   rt.Bus,
		Logger:      rt.Logger,
		LockTimeout: rt.Config.App.LockTimeout,
	}
}

// WakePlanner returns a planner over the runtime's store and schedule.
func (rt *Runtime) WakePlanner() *eventhandler.WakePlanner {
	return eventhandler.NewWakePlanner(rt.Users, rt.Schedule, eventhandler.WakePlannerConfig{
		Recorder: rt.Metrics,
		Logger:   rt.Logger,
	})
}

// SubscribeObservers attaches the activity log and the event journal as the
// feature flags allow. The journal needs Postgres.
func (rt *Runtime) SubscribeObservers() error {
	if rt.Config.Features.IsEnabled(config.FeatureActivityLog, nil) {
		if err := rt.Bus.SubscribeAll(eventhandler.NewActivityLog(rt.Logger).Handle); err != nil {
			return fmt.Errorf("subscribe activity log: %w", err)
		}
	}
	if rt.DB != nil && rt.Config.Features.IsEnabled(config.FeatureEventJournal, nil) {
		if err := rt.Bus.SubscribeAll(postgres.NewEventJournal(rt.DB).Handle); err != nil {
			return fmt.Errorf("subscribe event journal: %w", err)
		}
	}
	return nil
}

// Notifier picks the push gateway per user when it is configured and the
// wake.push flag admits the user; everyone else is logged.
func (rt *Runtime) Notifier() alarm.WakeNotifier {
	logNotifier := push.NewLogNotifier(rt.Logger)
	if rt.Config.Push.URL == "" {
		return logNotifier
	}

	clientCfg := push.DefaultClientConfig(rt.Config.Push.URL, rt.Config.Push.Token)
	clientCfg.Timeout = rt.Config.Push.Timeout
	clientCfg.RetryAttempts = rt.Config.Push.RetryAttempts
	clientCfg.Logger = rt.Logger
	clientCfg.OnBreakerChange = rt.breakerHook

	return &flaggedNotifier{
		flags:    rt.Config.Features,
		push:     push.NewClient(clientCfg),
		fallback: logNotifier,
	}
}

type flaggedNotifier struct {
	flags    *config.FeatureFlags
	push     alarm.WakeNotifier
	fallback alarm.WakeNotifier
}

func (n *flaggedNotifier) NotifyWake(ctx context.Context, w alarm.PlannedWake) error {
	if n.flags.IsEnabled(config.FeatureWakePush, &config.FeatureContext{UserID: w.UserID}) {
		return n.push.NotifyWake(ctx, w)
	}
	return n.fallback.NotifyWake(ctx, w)
}

// Scheduler builds a scheduler with the replan and due jobs registered. The
// replan job is skipped when its feature flag is off.
func (rt *Runtime) Scheduler(planner *eventhandler.WakePlanner) (*scheduler.Scheduler, error) {
	cfg := rt.Config.Scheduler

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:     rt.Logger,
		Location:   rt.Config.App.Location,
		Recorder:   rt.Metrics,
		JobTimeout: cfg.JobTimeout,
	})

	if rt.Config.Features.IsEnabled(config.FeatureReplanJob, nil) {
		replanCfg := jobs.DefaultReplanWakeUpsConfig()
		replanCfg.Concurrency = cfg.ReplanConcurrency
		replan := jobs.NewReplanWakeUpsJob(rt.Users, planner, rt.Logger, replanCfg)
		if err := sched.Register(replan, cfg.ReplanSpec); err != nil {
			return nil, err
		}
	}

	due := jobs.NewDueWakeUpsJob(rt.Schedule, rt.Notifier(), planner, rt.Logger, nil).WithBatch(cfg.DueBatch)
	if err := sched.Register(due, cfg.DueSpec); err != nil {
		return nil, err
	}
	return sched, nil
}

// HTTPServer builds the REST server over the runtime's command handlers.
func (rt *Runtime) HTTPServer() *httpapi.Server {
	cfg := rt.Config.HTTP

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.ReadTimeout = cfg.ReadTimeout
	serverCfg.WriteTimeout = cfg.WriteTimeout
	serverCfg.IdleTimeout = cfg.IdleTimeout
	serverCfg.MaxBodyBytes = cfg.MaxBodyBytes
	serverCfg.AllowedOrigins = cfg.AllowedOrigins
	serverCfg.EnableMetrics = rt.Config.Observability.MetricsEnabled
	serverCfg.RateLimitPerSecond = cfg.RateLimitPerSecond
	serverCfg.RateLimitBurst = cfg.RateLimitBurst

	deps := httpapi.NewDependencies(rt.CommandDeps(), rt.Config.App.BcryptCost)
	deps.Metrics = rt.Metrics
	deps.HealthChecker = rt.Health
	deps.Logger = rt.Logger

	return httpapi.NewServer(serverCfg, deps)
}

// Migrator returns the schema migrator, or an error when the runtime has no
// database.
func (rt *Runtime) Migrator() (*postgres.Migrator, error) {
	if rt.DB == nil {
		return nil, fmt.Errorf("migrations need the %q driver, got %q", config.DriverPostgres, rt.Config.Database.Driver)
	}
	return postgres.NewMigrator(rt.DB), nil
}

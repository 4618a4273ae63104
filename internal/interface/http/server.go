// Package http implements the REST API of the wake-up service on net/http
// method patterns. Every mutating endpoint returns the updated user view.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/application/command"
	"github.com/wakeup-hub/wakeup-hub/internal/application/query"
	"github.com/wakeup-hub/wakeup-hub/internal/interface/http/handlers"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds listener, timeout and middleware settings.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodyBytes caps a decoded JSON request body.
	MaxBodyBytes int64

	EnableCORS     bool
	AllowedOrigins []string

	EnableMetrics bool

	// RateLimitPerSecond is the sustained per-client rate; 0 disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// DefaultConfig listens on :8080 with CORS, metrics and a 10 rps limit.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       64 << 10,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		EnableMetrics:      true,
		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	}
}

// Address is the listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Instrumenter exposes request metrics.
type Instrumenter interface {
	Handler() http.Handler
	InstrumentHandler(next http.Handler) http.Handler
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	Signup        *command.SignupHandler
	Signin        *command.SigninHandler
	CreateAlarm   *command.CreateAlarmHandler
	EditAlarm     *command.EditAlarmHandler
	ToggleAlarm   *command.ToggleAlarmHandler
	DeleteAlarm   *command.DeleteAlarmHandler
	StartSleep    *command.StartSleepHandler
	EndSleep      *command.EndSleepHandler
	SaveWakeUp    *command.SaveWakeUpHandler
	CollectReward *command.CollectRewardHandler
	Friends       *command.FriendsHandler

	// Query Handlers (CQRS Read Side)
	GetUser *query.GetUserHandler

	Metrics       Instrumenter
	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger

	// Now renders the next-alarm countdown; defaults to the wall clock.
	Now func() time.Time
}

// NewDependencies builds every handler from one set of command collaborators.
func NewDependencies(deps command.Deps, bcryptCost int) Dependencies {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return Dependencies{
		Signup:        command.NewSignupHandler(deps, bcryptCost),
		Signin:        command.NewSigninHandler(deps),
		CreateAlarm:   command.NewCreateAlarmHandler(deps),
		EditAlarm:     command.NewEditAlarmHandler(deps),
		ToggleAlarm:   command.NewToggleAlarmHandler(deps),
		DeleteAlarm:   command.NewDeleteAlarmHandler(deps),
		StartSleep:    command.NewStartSleepHandler(deps),
		EndSleep:      command.NewEndSleepHandler(deps),
		SaveWakeUp:    command.NewSaveWakeUpHandler(deps),
		CollectReward: command.NewCollectRewardHandler(deps),
		Friends:       command.NewFriendsHandler(deps),
		GetUser:       query.NewGetUserHandler(deps.Users, deps.Now),
		Logger:        deps.Logger,
		Now:           deps.Now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the REST API.
type Server struct {
	config  Config
	deps    Dependencies
	mux     *http.ServeMux
	handler http.Handler
	http    *http.Server
	logger  *logger.Logger
	limiter *rateLimiter

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stoppedAt time.Time
}

// NewServer wires routes and middleware. Missing optional dependencies get
// defaults.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	}

	s := &Server{
		config: config,
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: deps.Logger.Named("http"),
	}
	if config.RateLimitPerSecond > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerSecond, config.RateLimitBurst)
	}

	s.routes()
	s.handler = wrap(s.mux, s.middlewares()...)
	s.http = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	if s.config.EnableMetrics && s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Account
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("PUT /signup", s.handleSignup)
	s.mux.HandleFunc("PUT /signin", s.handleSignin)
	s.mux.HandleFunc("POST /getUser", s.handleGetUser)

	// ─────────────────────────────────────────────────────────────────────────
	// Alarms
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("PUT /createAlarm", s.handleCreateAlarm)
	s.mux.HandleFunc("PUT /editAlarm", s.handleEditAlarm)
	s.mux.HandleFunc("PUT /toggleAlarm", s.handleToggleAlarm)
	s.mux.HandleFunc("PUT /deleteAlarm", s.handleDeleteAlarm)

	// ─────────────────────────────────────────────────────────────────────────
	// Sleep and challenges
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("PUT /startSleep", s.handleStartSleep)
	s.mux.HandleFunc("PUT /endSleep", s.handleEndSleep)
	s.mux.HandleFunc("PUT /savewakeup", s.handleSaveWakeUp)
	s.mux.HandleFunc("PUT /nextChallenge", s.handleNextChallenge)
	s.mux.HandleFunc("GET /challenges/table", s.handleChallengeTable)

	// ─────────────────────────────────────────────────────────────────────────
	// Friends
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("PUT /sendFriendRequest", s.handleFriend(friendSend))
	s.mux.HandleFunc("PUT /acceptFriendRequest", s.handleFriend(friendAccept))
	s.mux.HandleFunc("PUT /declineFriendRequest", s.handleFriend(friendDecline))
	s.mux.HandleFunc("PUT /removeFriend", s.handleFriend(friendRemove))
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

var errServerRunning = errors.New("http server already running")

// Start listens and blocks until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errServerRunning
	}
	s.running = true
	s.startedAt = time.Now()
	s.stoppedAt = time.Time{}
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.startSweeper(time.Minute)
	}
	s.logger.Info("http server listening", logger.String("address", s.config.Address()))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one error
// and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires. It is a no-op on a
// server that is not running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stoppedAt = time.Now()
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.stop()
	}
	s.logger.Info("http server draining")
	return s.http.Shutdown(ctx)
}

// Uptime is the time since Start, frozen at Shutdown. It is zero for a
// server that never started.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.startedAt.IsZero():
		return 0
	case s.stoppedAt.IsZero():
		return time.Since(s.startedAt)
	default:
		return s.stoppedAt.Sub(s.startedAt)
	}
}

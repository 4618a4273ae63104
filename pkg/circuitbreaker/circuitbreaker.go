// Package circuitbreaker stops calling a dependency that keeps failing and
// lets a probe through after a cool-down. Postgres, Redis and the push
// gateway each get their own breaker.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling the dependency while the
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when every half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// StateChangeFunc observes transitions. It runs under the breaker lock and
// must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// Settings configure a breaker. Zero values take the defaults noted on each
// field.
type Settings struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// FailureThreshold consecutive failures open the circuit (default 5).
	FailureThreshold int

	// SuccessThreshold half-open successes close it again (default 1).
	SuccessThreshold int

	// OpenFor is the cool-down before the first probe (default 30s).
	OpenFor time.Duration

	// HalfOpenProbes bounds concurrent probes (default 1).
	HalfOpenProbes int

	// IsFailure decides which errors count; a nil func counts every error.
	// Business outcomes such as "not found" must not open the circuit.
	IsFailure func(error) bool

	OnStateChange StateChangeFunc

	// Now replaces time.Now in tests.
	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	if s.HalfOpenProbes <= 0 {
		s.HalfOpenProbes = 1
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Counts are cumulative except the consecutive counters, which reset on
// every transition.
type Counts struct {
	Requests             int
	Failures             int
	Rejected             int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{settings: settings.withDefaults()}
}

// Execute runs fn unless the circuit rejects the call, and records the
// outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.settings.Now().Sub(cb.openedAt) < cb.settings.OpenFor {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.settings.HalfOpenProbes {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if err != nil && cb.settings.IsFailure(err) {
		cb.counts.Failures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		// a failed probe reopens at once
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.settings.FailureThreshold {
			cb.transition(StateOpen)
		}
		return
	}

	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0
	if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.settings.Now()
	}
	cb.counts.ConsecutiveFailures = 0
	cb.counts.ConsecutiveSuccesses = 0
	cb.probes = 0

	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// DatabaseBreaker guards the user store. It opens fast because every command
// needs Postgres and callers should get a 503 rather than queue up.
func DatabaseBreaker(isFailure func(error) bool, onChange StateChangeFunc) *CircuitBreaker {
	return New(Settings{
		Name:             "postgres",
		FailureThreshold: 3,
		OpenFor:          10 * time.Second,
		IsFailure:        isFailure,
		OnStateChange:    onChange,
	})
}

// CacheBreaker guards the Redis user cache. Reads fall through to Postgres
// while it is open.
func CacheBreaker(isFailure func(error) bool, onChange StateChangeFunc) *CircuitBreaker {
	return New(Settings{
		Name:             "redis",
		FailureThreshold: 5,
		OpenFor:          5 * time.Second,
		HalfOpenProbes:   2,
		IsFailure:        isFailure,
		OnStateChange:    onChange,
	})
}

// PushBreaker guards the push gateway. Due wake-ups keep being replanned
// while it is open.
func PushBreaker(isFailure func(error) bool, onChange StateChangeFunc) *CircuitBreaker {
	return New(Settings{
		Name:             "push",
		FailureThreshold: 5,
		OpenFor:          30 * time.Second,
		IsFailure:        isFailure,
		OnStateChange:    onChange,
	})
}

// Package retry repeats an operation with capped exponential backoff. Request
// paths never retry; the worker's jobs and the push client do.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried. Zero values take the
// defaults noted on each field.
type Policy struct {
	// Attempts includes the first call (default 3).
	Attempts int

	// BaseDelay precedes the first retry (default 100ms) and doubles after
	// each one up to MaxDelay (default 30s).
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads each delay by ±Jitter of itself, in [0, 1].
	Jitter float64

	// Retryable decides which errors are retried. A nil func retries none.
	Retryable func(error) bool

	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = func(error) bool { return false }
	}
	return p
}

// Retrier runs operations under one Policy.
type Retrier struct {
	policy Policy
}

// New creates a Retrier.
func New(p Policy) *Retrier {
	return &Retrier{policy: p.withDefaults()}
}

// Do calls op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. The error of the last call is returned; a context
// that ends before the first call returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		last = op(ctx)
		if last == nil || attempt >= r.policy.Attempts || !r.policy.Retryable(last) {
			return last
		}

		delay := r.Delay(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, last, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
}

// Delay is the pause after the given attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	d := float64(r.policy.BaseDelay) * math.Pow(2, float64(attempt-1))
	d = math.Min(d, float64(r.policy.MaxDelay))
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = op(ctx)
		return err
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// JobPolicy retries transient store failures inside scheduled jobs.
func JobPolicy(isTransient func(error) bool, onRetry func(attempt int, err error, delay time.Duration)) Policy {
	return Policy{
		Attempts:  4,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Jitter:    0.2,
		Retryable: isTransient,
		OnRetry:   onRetry,
	}
}

package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK TYPES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the state of the service's dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc probes one dependency and returns an error when it is down.
type HealthCheckFunc func(ctx context.Context) error

// Pinger is satisfied by the Postgres connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	// Healthy is false when any check fails.
	Healthy bool `json:"healthy"`

	// Ready is false only when a critical check fails. A lost Redis degrades
	// the service but requests are still answered from Postgres.
	Ready bool `json:"ready"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

type registeredCheck struct {
	fn       HealthCheckFunc
	critical bool
}

// CompositeHealthChecker runs its checks in parallel, each under its own
// timeout.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]registeredCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a checker with no checks.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:    make(map[string]registeredCheck),
		startTime: time.Now(),
		version:   version,
		timeout:   2 * time.Second,
	}
}

// SetTimeout sets the per-check timeout.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// AddCheck registers a check whose failure makes the service not ready.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.add(name, check, true)
}

// AddOptionalCheck registers a check whose failure only marks the service
// unhealthy.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, check HealthCheckFunc) {
	c.add(name, check, false)
}

func (c *CompositeHealthChecker) add(name string, check HealthCheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: check, critical: critical}
}

// Check runs every registered check.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "no dependencies"
		return status
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check registeredCheck) {
			defer wg.Done()
			result := runCheck(ctx, check, timeout)
			mu.Lock()
			status.Checks[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	var failed []string
	for name, result := range status.Checks {
		if result.Healthy {
			continue
		}
		failed = append(failed, name)
		status.Healthy = false
		if result.Critical {
			status.Ready = false
		}
	}

	if status.Healthy {
		status.Message = "all dependencies up"
	} else {
		sort.Strings(failed)
		status.Message = "unavailable: " + strings.Join(failed, ", ")
	}
	return status
}

func runCheck(ctx context.Context, check registeredCheck, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := check.fn(ctx)
	result := CheckResult{
		Healthy:  err == nil,
		Critical: check.critical,
		Message:  "ok",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		result.Message = err.Error()
	}
	return result
}

// PingCheck wraps anything with a Ping method.
func PingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// ══════════════════════════════════════════════════════════════════════════════
// NOOP
// ══════════════════════════════════════════════════════════════════════════════

// NoopHealthChecker always reports healthy.
type NoopHealthChecker struct {
	startTime time.Time
}

// NewNoopHealthChecker creates a NoopHealthChecker.
func NewNoopHealthChecker() *NoopHealthChecker {
	return &NoopHealthChecker{startTime: time.Now()}
}

// Check implements HealthChecker.
func (n *NoopHealthChecker) Check(context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Ready:     true,
		Message:   "ok",
		Uptime:    time.Since(n.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}

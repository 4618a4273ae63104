// Package push delivers due wake-ups to a push gateway over HTTP. The gateway
// owns device tokens and the actual APNs/FCM delivery.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/pkg/circuitbreaker"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
	"github.com/wakeup-hub/wakeup-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the push gateway client.
type ClientConfig struct {
	// BaseURL is the gateway root, e.g. https://push.internal.
	BaseURL string

	// Token is sent as a bearer token.
	Token string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RetryAttempts includes the first attempt.
	RetryAttempts int

	// RetryDelay is the delay before the first retry.
	RetryDelay time.Duration

	// OnBreakerChange observes the gateway breaker. Optional.
	OnBreakerChange circuitbreaker.StateChangeFunc

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, token string) ClientConfig {
	return ClientConfig{
		BaseURL:       baseURL,
		Token:         token,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements alarm.WakeNotifier against the gateway.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewClient creates a new gateway client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	log := config.Logger.With(logger.Component("push_client"))
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    circuitbreaker.PushBreaker(isRetryableError, config.OnBreakerChange),
		retrier: retry.New(retry.Policy{
			Attempts:  config.RetryAttempts,
			BaseDelay: config.RetryDelay,
			MaxDelay:  10 * time.Second,
			Jitter:    0.1,
			Retryable: isRetryableError,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				log.Warn("push retry", logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
			},
		}),
		log: log,
	}
}

// wakeRequest is the gateway payload.
type wakeRequest struct {
	UserID  string    `json:"user_id"`
	AlarmID string    `json:"alarm_id"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
}

// NotifyWake posts the wake-up to the gateway.
func (c *Client) NotifyWake(ctx context.Context, w alarm.PlannedWake) error {
	body := wakeRequest{UserID: w.UserID, AlarmID: w.AlarmID, At: w.At, Kind: "wake"}
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.post(ctx, "/v1/wake", body)
		})
	})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Code: resp.StatusCode, Description: strings.TrimSpace(string(msg))}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a non-2xx gateway response.
type APIError struct {
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("push gateway error %d: %s", e.Code, e.Description)
}

// isRetryableError reports rate limits, server errors and network failures.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if circuitbreaker.IsRejected(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// LogNotifier only logs due wake-ups. It is used when no gateway is
// configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log.With(logger.Component("wake_notifier"))}
}

// NotifyWake implements alarm.WakeNotifier.
func (n *LogNotifier) NotifyWake(_ context.Context, w alarm.PlannedWake) error {
	n.log.Info("wake-up due",
		logger.UserID(w.UserID),
		logger.AlarmID(w.AlarmID),
		logger.Time("at", w.At),
	)
	return nil
}

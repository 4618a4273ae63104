package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/pkg/circuitbreaker"
)

var wake = alarm.PlannedWake{
	UserID:  "u1",
	AlarmID: "a1",
	At:      time.Date(2026, 5, 4, 6, 30, 0, 0, time.UTC),
}

func TestNotifyWake_PostsPayload(t *testing.T) {
	var got wakeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wake", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(DefaultClientConfig(srv.URL+"/", "secret"))
	require.NoError(t, c.NotifyWake(context.Background(), wake))

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "a1", got.AlarmID)
	assert.True(t, wake.At.Equal(got.At))
}

func TestNotifyWake_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig(srv.URL, "")
	cfg.RetryDelay = time.Millisecond
	require.NoError(t, NewClient(cfg).NotifyWake(context.Background(), wake))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyWake_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown device", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig(srv.URL, "")
	cfg.RetryDelay = time.Millisecond
	err := NewClient(cfg).NotifyWake(context.Background(), wake)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.Equal(t, "unknown device", apiErr.Description)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifyWake_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var opened []string
	cfg := DefaultClientConfig(srv.URL, "")
	cfg.RetryAttempts = 5
	cfg.RetryDelay = time.Millisecond
	cfg.OnBreakerChange = func(name string, _, to circuitbreaker.State) {
		if to == circuitbreaker.StateOpen {
			opened = append(opened, name)
		}
	}
	c := NewClient(cfg)

	var apiErr *APIError
	require.ErrorAs(t, c.NotifyWake(context.Background(), wake), &apiErr)
	assert.Equal(t, []string{"push"}, opened)

	err := c.NotifyWake(context.Background(), wake)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).NotifyWake(context.Background(), wake))
}

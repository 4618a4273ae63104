package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker(t *testing.T) {
	tests := []struct {
		name        string
		postgres    error
		redis       error
		wantHealthy bool
		wantReady   bool
		wantMessage string
	}{
		{name: "all up", wantHealthy: true, wantReady: true, wantMessage: "all dependencies up"},
		{name: "redis down", redis: errors.New("refused"), wantReady: true, wantMessage: "unavailable: redis"},
		{name: "postgres down", postgres: errors.New("refused"), wantMessage: "unavailable: postgres"},
		{name: "both down", postgres: errors.New("x"), redis: errors.New("y"), wantMessage: "unavailable: postgres, redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("1.2.3")
			c.AddCheck("postgres", PingCheck(pinger{tt.postgres}))
			c.AddOptionalCheck("redis", PingCheck(pinger{tt.redis}))

			status := c.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Equal(t, tt.wantMessage, status.Message)
			assert.Equal(t, "1.2.3", status.Version)
			require.Len(t, status.Checks, 2)
			assert.True(t, status.Checks["postgres"].Critical)
			assert.False(t, status.Checks["redis"].Critical)
		})
	}
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}

func TestCompositeHealthChecker_Empty(t *testing.T) {
	status := NewCompositeHealthChecker("").Check(context.Background())
	assert.True(t, status.Ready)
	assert.Equal(t, "no dependencies", status.Message)
}

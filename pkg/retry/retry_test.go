package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFlaky = errors.New("flaky")
	errFatal = errors.New("fatal")
)

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Retryable: isFlaky}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retries []int

	p := fast(5)
	p.OnRetry = func(attempt int, err error, _ time.Duration) {
		assert.ErrorIs(t, err, errFlaky)
		retries = append(retries, attempt)
	}
	err := New(p).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := New(fast(5)).Do(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	})
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := New(fast(3)).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := New(fast(3)).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelDuringBackoffReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 3, BaseDelay: time.Hour, Retryable: isFlaky}
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	err := New(p).Do(ctx, func(context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, errFlaky)
}

func TestDelay_DoublesAndCaps(t *testing.T) {
	r := New(Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, 100*time.Millisecond, r.Delay(1))
	assert.Equal(t, 200*time.Millisecond, r.Delay(2))
	assert.Equal(t, 800*time.Millisecond, r.Delay(4))
	assert.Equal(t, time.Second, r.Delay(10))
}

func TestDelay_JitterBounds(t *testing.T) {
	r := New(Policy{BaseDelay: 100 * time.Millisecond, Jitter: 0.2})
	for i := 0; i < 50; i++ {
		d := r.Delay(1)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestValue(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), New(fast(3)), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestJobPolicy(t *testing.T) {
	p := JobPolicy(isFlaky, nil).withDefaults()
	assert.Equal(t, 4, p.Attempts)
	assert.True(t, p.Retryable(errFlaky))
	assert.False(t, p.Retryable(errFatal))
}

package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// fakeRow replays column values in SELECT order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]byte:
			*d = v.([]byte)
		case *[]string:
			*d = v.([]string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

func TestScanUser_RoundTripsDocument(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	u, err := user.New(user.NewUserParams{ID: "u1", Email: "a@b.io", Username: "ab", Timezone: "Europe/Berlin"}, now)
	require.NoError(t, err)
	_, err = u.AddAlarm("a1", alarm.TimeOfDay{Hour: 6, Minute: 15}, alarm.NewDays(time.Monday), "gym", now)
	require.NoError(t, err)
	_, err = u.StartSleep("s1", now)
	require.NoError(t, err)

	doc, err := marshalDocument(u)
	require.NoError(t, err)

	got, err := scanUser(fakeRow{values: []any{
		"u1", "a@b.io", "ab", "hash", 40, doc,
		[]string{"u2"}, []string{}, []string{"u3"},
		3, now, now,
	}})
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, 40, got.XP)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, []string{"u2"}, got.Friends)
	require.Len(t, got.Alarms, 1)
	assert.Equal(t, alarm.NewDays(time.Monday), got.Alarms[0].Days)
	open, ok := got.CurrentSleep()
	require.True(t, ok)
	assert.Equal(t, "s1", open.ID)
	assert.Len(t, got.Challenges, len(challenge.Names))
}

func TestScanUser_NoRows(t *testing.T) {
	_, err := scanUser(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestIsInfrastructureError(t *testing.T) {
	assert.False(t, IsInfrastructureError(nil))
	assert.False(t, IsInfrastructureError(shared.ErrUserNotFound))
	assert.False(t, IsInfrastructureError(fmt.Errorf("wrapped: %w", shared.ErrVersionConflict)))
	assert.True(t, IsInfrastructureError(errors.New("connection reset by peer")))
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.DSN(), "dbname=wakeup")

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

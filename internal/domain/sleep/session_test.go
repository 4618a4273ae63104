package sleep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

var night = time.Date(2026, 1, 7, 23, 0, 0, 0, time.UTC)

func TestHistory_StartTwiceConflicts(t *testing.T) {
	var h History

	_, err := h.Start("s1", night)
	require.NoError(t, err)

	_, err = h.Start("s2", night.Add(time.Minute))
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, h, 1)
}

func TestHistory_EndLifecycle(t *testing.T) {
	var h History
	_, err := h.Start("s1", night)
	require.NoError(t, err)

	open, ok := h.CurrentOpen()
	require.True(t, ok)
	assert.Equal(t, "s1", open.ID)

	closed, err := h.End("s1", night.Add(7*time.Hour+45*time.Minute+30*time.Second))
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())

	_, ok = h.CurrentOpen()
	assert.False(t, ok)

	d, err := DurationOf(closed)
	require.NoError(t, err)
	assert.Equal(t, Duration{Hours: 7, Minutes: 45}, d)

	// a second end must not move the end time
	_, err = h.End("s1", night.Add(9*time.Hour))
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, night.Add(7*time.Hour+45*time.Minute+30*time.Second), *h[0].EndTime)

	// next session can start now
	_, err = h.Start("s2", night.Add(24*time.Hour))
	assert.NoError(t, err)
}

func TestHistory_EndErrors(t *testing.T) {
	var h History
	_, err := h.Start("s1", night)
	require.NoError(t, err)

	_, err = h.End("missing", night.Add(time.Hour))
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.End("s1", night.Add(-time.Minute))
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.True(t, h[0].IsOpen())
}

func TestDurationOf_OpenSession(t *testing.T) {
	_, err := DurationOf(Session{ID: "s1", StartTime: night})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestHistory_ClosedNewestFirst(t *testing.T) {
	var h History
	for i, id := range []string{"s1", "s2", "s3"} {
		start := night.AddDate(0, 0, i)
		_, err := h.Start(id, start)
		require.NoError(t, err)
		if id != "s3" {
			_, err = h.End(id, start.Add(8*time.Hour))
			require.NoError(t, err)
		}
	}

	closed := h.ClosedNewestFirst()

	require.Len(t, closed, 2)
	assert.Equal(t, "s2", closed[0].ID)
	assert.Equal(t, "s1", closed[1].ID)
}

func TestHistory_CloneIsDeep(t *testing.T) {
	var h History
	_, _ = h.Start("s1", night)
	_, _ = h.End("s1", night.Add(time.Hour))

	c := h.Clone()
	*c[0].EndTime = night.Add(2 * time.Hour)
	require.NoError(t, c.MarkSnoozed("s1"))

	assert.Equal(t, night.Add(time.Hour), *h[0].EndTime)
	assert.False(t, h[0].Snoozed)
}

func TestHistory_MarkSnoozed(t *testing.T) {
	var h History
	_, _ = h.Start("s1", night)
	_, _ = h.End("s1", night.Add(8*time.Hour))
	_, _ = h.Start("s2", night.Add(24*time.Hour))

	require.NoError(t, h.MarkSnoozed("s1"))
	assert.True(t, h[0].Snoozed)
	assert.False(t, h[1].Snoozed)
	assert.True(t, h.Has("s2"))

	assert.ErrorIs(t, h.MarkSnoozed("nope"), shared.ErrNotFound)
	assert.False(t, h.Has("nope"))
}

func TestNewWakeUp(t *testing.T) {
	w, err := NewWakeUp("w1", "s1", night, GameMath, 2, 14)
	require.NoError(t, err)
	assert.True(t, w.Snoozed())

	_, err = NewWakeUp("w2", "s1", night, Game("chess"), 0, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewWakeUp("w3", "s1", night, GameShake, -1, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
)

func TestWakeSchedule_OneEntryPerUser(t *testing.T) {
	s := NewWakeSchedule()
	ctx := context.Background()

	require.NoError(t, s.Plan(ctx, "u1", alarm.Occurrence{At: now.Add(time.Hour), AlarmID: "a1"}))
	require.NoError(t, s.Plan(ctx, "u1", alarm.Occurrence{At: now.Add(-time.Minute), AlarmID: "a2"}))
	require.NoError(t, s.Plan(ctx, "u2", alarm.Occurrence{At: now.Add(-time.Hour), AlarmID: "b1"}))
	require.NoError(t, s.Plan(ctx, "u3", alarm.Occurrence{At: now.Add(time.Hour), AlarmID: "c1"}))

	due, err := s.Due(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "u2", due[0].UserID)
	assert.Equal(t, "u1", due[1].UserID)
	assert.Equal(t, "a2", due[1].AlarmID)

	limited, err := s.Due(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.Cancel(ctx, "u2"))
	require.NoError(t, s.Cancel(ctx, "nobody"))
	due, _ = s.Due(ctx, now, 0)
	assert.Len(t, due, 1)
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, r *UserRepository, id, email, username string) *user.User {
	t.Helper()
	u, err := user.New(user.NewUserParams{ID: id, Email: email, Username: username}, now)
	require.NoError(t, err)
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestCreate_Unique(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	u := seed(t, r, "u1", "a@b.io", "alice")
	assert.Equal(t, 1, u.Version)

	dup, err := user.New(user.NewUserParams{ID: "u2", Email: "A@B.io", Username: "bob"}, now)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Create(context.Background(), dup), shared.ErrConflict)
}

func TestFind(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u1", "a@b.io", "alice")
	ctx := context.Background()

	byEmail, err := r.FindByField(ctx, user.FieldEmail, " A@B.IO ")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	byName, err := r.FindByField(ctx, user.FieldUsername, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSave_VersionConflict(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u1", "a@b.io", "alice")
	ctx := context.Background()

	first, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	second, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)

	_, err = first.AddAlarm("a1", alarm.TimeOfDay{Hour: 7}, alarm.Everyday, "", now)
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.XP = 500
	assert.ErrorIs(t, r.Save(ctx, second), shared.ErrVersionConflict)

	stored, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored.Alarms, 1)
	assert.Equal(t, 0, stored.XP)
}

func TestSets_IdempotentAndUntouchedBySave(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u1", "a@b.io", "alice")
	ctx := context.Background()

	loaded, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, r.AddToSet(ctx, "u1", user.SetFriends, "u2"))
	require.NoError(t, r.AddToSet(ctx, "u1", user.SetFriends, "u2"))
	require.NoError(t, r.RemoveFromSet(ctx, "u1", user.SetIncoming, "u9"))

	// saving a copy loaded before the set change keeps the new friend
	require.NoError(t, r.Save(ctx, loaded))

	stored, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, stored.Friends)

	require.NoError(t, r.RemoveFromSet(ctx, "u1", user.SetFriends, "u2"))
	stored, _ = r.FindByID(ctx, "u1")
	assert.Empty(t, stored.Friends)

	assert.ErrorIs(t, r.AddToSet(ctx, "nope", user.SetFriends, "u2"), shared.ErrNotFound)
	assert.ErrorIs(t, r.AddToSet(ctx, "u1", user.SetName("enemies"), "u2"), shared.ErrValidation)
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u1", "a@b.io", "alice")
	ctx := context.Background()

	u, _ := r.FindByID(ctx, "u1")
	u.XP = 999

	again, _ := r.FindByID(ctx, "u1")
	assert.Equal(t, 0, again.XP)
}

func TestFailNext_IsTransient(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u1", "a@b.io", "alice")

	r.FailNext(errors.New("disk on fire"))
	_, err := r.FindByID(context.Background(), "u1")
	assert.True(t, shared.IsTransient(err))

	_, err = r.FindByID(context.Background(), "u1")
	assert.NoError(t, err)
}

func TestListIDs(t *testing.T) {
	t.Parallel()
	r := NewUserRepository()
	seed(t, r, "u2", "b@b.io", "bob")
	seed(t, r, "u1", "a@b.io", "alice")

	ids, err := r.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, ids)
}

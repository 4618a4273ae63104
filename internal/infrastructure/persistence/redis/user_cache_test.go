package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/memory"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// fakeCache is an in-memory user.Cache with error injection.
type fakeCache struct {
	mu             sync.Mutex
	items          map[string]*user.User
	gens           map[string]int
	gets           int
	failGet        error
	failInvalidate error
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]*user.User), gens: make(map[string]int)}
}

func (c *fakeCache) Get(_ context.Context, id string) (*user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet != nil {
		return nil, c.failGet
	}
	u, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

func (c *fakeCache) Generation(_ context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.Itoa(c.gens[id]), nil
}

func (c *fakeCache) Fill(_ context.Context, u *user.User, gen string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strconv.Itoa(c.gens[u.ID]) != gen {
		return nil
	}
	c.items[u.ID] = u.Clone()
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInvalidate != nil {
		return c.failInvalidate
	}
	delete(c.items, id)
	c.gens[id]++
	return nil
}

func (c *fakeCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

func setup(t *testing.T) (*CachedRepository, *memory.UserRepository, *fakeCache) {
	t.Helper()
	store := memory.NewUserRepository()
	u, err := user.New(user.NewUserParams{ID: "u1", Email: "a@b.io", Username: "alice", PasswordHash: "h"}, now)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), u))

	cache := newFakeCache()
	return NewCachedRepository(store, cache, nil), store, cache
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	repo, store, cache := setup(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cache.has("u1"))

	// a store outage is invisible while the copy is cached
	store.FailNext(errors.New("down"))
	got, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestCachedRepository_CacheErrorFallsBackToStore(t *testing.T) {
	repo, _, cache := setup(t)
	cache.failGet = errors.New("redis timeout")

	got, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestCachedRepository_WritesInvalidate(t *testing.T) {
	repo, _, cache := setup(t)
	ctx := context.Background()

	u, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	_, err = u.AddAlarm("a1", alarm.TimeOfDay{Hour: 7}, alarm.Everyday, "", now)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, u))
	assert.False(t, cache.has("u1"))

	fresh, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, fresh.Alarms, 1)
	assert.Equal(t, 2, fresh.Version)

	require.NoError(t, repo.AddToSet(ctx, "u1", user.SetFriends, "u2"))
	assert.False(t, cache.has("u1"))

	fresh, err = repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, fresh.Friends)
}

// interleavedStore runs during once, right after the first store read
// returns.
type interleavedStore struct {
	user.Repository
	during func()
}

func (s *interleavedStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	u, err := s.Repository.FindByID(ctx, id)
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return u, err
}

func TestCachedRepository_WriteDuringMissKeepsStaleCopyOut(t *testing.T) {
	_, store, cache := setup(t)
	ctx := context.Background()
	writer := NewCachedRepository(store, cache, nil)

	reader := NewCachedRepository(&interleavedStore{
		Repository: store,
		during: func() {
			u, err := store.FindByID(ctx, "u1")
			require.NoError(t, err)
			_, err = u.AddAlarm("a1", alarm.TimeOfDay{Hour: 6}, alarm.Everyday, "", now)
			require.NoError(t, err)
			require.NoError(t, writer.Save(ctx, u))
		},
	}, cache, nil)

	stale, err := reader.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Version)
	assert.False(t, cache.has("u1"), "the pre-write copy must not be cached")

	fresh, err := writer.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Version)
	assert.Len(t, fresh.Alarms, 1)

	_, err = fresh.AddAlarm("a2", alarm.TimeOfDay{Hour: 7}, alarm.Everyday, "", now)
	require.NoError(t, err)
	assert.NoError(t, writer.Save(ctx, fresh))
}

func TestCachedRepository_InvalidationFailureIsTransient(t *testing.T) {
	repo, _, cache := setup(t)
	ctx := context.Background()
	cache.failInvalidate = errors.New("connection refused")

	err := repo.RemoveFromSet(ctx, "u1", user.SetIncoming, "u9")
	assert.True(t, shared.IsTransient(err))
	assert.ErrorIs(t, err, shared.ErrCacheOutOfSync)
}

func TestCachedRepository_StoreErrorSkipsInvalidation(t *testing.T) {
	repo, _, cache := setup(t)
	cache.failInvalidate = errors.New("unreachable")

	err := repo.AddToSet(context.Background(), "missing", user.SetFriends, "u2")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCachedUser_KeepsPasswordHash(t *testing.T) {
	u, err := user.New(user.NewUserParams{ID: "u1", Email: "a@b.io", Username: "alice", PasswordHash: "secret-hash"}, now)
	require.NoError(t, err)

	data, err := json.Marshal(cachedUser{User: u, PasswordHash: u.PasswordHash})
	require.NoError(t, err)

	public, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(public), "secret-hash")

	var back cachedUser
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.User)
	assert.Equal(t, "secret-hash", back.PasswordHash)
	assert.Equal(t, "alice", back.Username)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:u1", UserKey("u1"))
	assert.Equal(t, "lock:user:u1", LockKey("user:u1"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestWakeMember(t *testing.T) {
	u, a := parseWakeMember(wakeMember("u1", "a1"))
	assert.Equal(t, "u1", u)
	assert.Equal(t, "a1", a)
}

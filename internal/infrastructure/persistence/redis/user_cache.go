package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/circuitbreaker"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cachedUser carries the password hash, which the public JSON form omits.
type cachedUser struct {
	*user.User
	PasswordHash string `json:"password_hash"`
}

// fillScript writes the aggregate only while the generation is unchanged.
// A missing generation reads as "".
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "" end
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// UserCache implements user.Cache on top of Cache. Calls go through a
// breaker so a dead Redis costs one fast rejection per request.
type UserCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewUserCache creates a UserCache. A zero ttl gets TTLUserCache; a nil
// breaker gets the default cache breaker.
func NewUserCache(cache *Cache, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker) *UserCache {
	if ttl <= 0 {
		ttl = TTLUserCache
	}
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(IsCacheFailure, nil)
	}
	return &UserCache{cache: cache, ttl: ttl, breaker: breaker}
}

// IsCacheFailure excludes misses and bad payloads from the breaker count.
func IsCacheFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheSerialization)
}

// Get returns the cached aggregate or (nil, nil) on a miss.
func (c *UserCache) Get(ctx context.Context, id string) (*user.User, error) {
	var cu cachedUser
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, UserKey(id), &cu)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	if cu.User == nil {
		return nil, nil
	}
	cu.User.PasswordHash = cu.PasswordHash
	cu.User.Normalize()
	return cu.User, nil
}

// Generation returns the fill token of id; "" when none was issued yet.
func (c *UserCache) Generation(ctx context.Context, id string) (string, error) {
	var gen string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := c.cache.Client().Get(ctx, UserGenerationKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		gen = v
		return err
	})
	return gen, err
}

// Fill stores u unless its generation moved past gen.
func (c *UserCache) Fill(ctx context.Context, u *user.User, gen string) error {
	if u == nil {
		return ErrCacheNilValue
	}
	data, err := json.Marshal(cachedUser{User: u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		keys := []string{UserKey(u.ID), UserGenerationKey(u.ID)}
		return fillScript.Run(ctx, c.cache.Client(), keys, gen, data, c.ttl.Milliseconds()).Err()
	})
}

// Invalidate drops the cached copy of id and issues a new generation. It
// bypasses the breaker: a skipped delete would leave a stale copy behind.
func (c *UserCache) Invalidate(ctx context.Context, id string) error {
	_, err := c.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, UserKey(id))
		pipe.Set(ctx, UserGenerationKey(id), uuid.NewString(), TTLUserGeneration)
		return nil
	})
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-THROUGH REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedRepository serves FindByID from a cache and drops the cached copy
// after every write. A failed drop is reported as transient because the
// cache may now serve a stale aggregate.
type CachedRepository struct {
	user.Repository
	cache user.Cache
	log   *logger.Logger
}

// NewCachedRepository wraps repo with cache.
func NewCachedRepository(repo user.Repository, cache user.Cache, log *logger.Logger) *CachedRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedRepository{
		Repository: repo,
		cache:      cache,
		log:        log.With(logger.Component("user_cache")),
	}
}

// FindByID reads through the cache. Cache errors fall back to the store.
// The generation is taken before the store read so that a write landing in
// between voids the fill.
func (r *CachedRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("cache read failed", logger.UserID(id), logger.Err(err))
	}
	if cached != nil {
		return cached, nil
	}

	gen, genErr := r.cache.Generation(ctx, id)
	u, err := r.Repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		r.log.Warn("cache generation unavailable, not filling", logger.UserID(id), logger.Err(genErr))
		return u, nil
	}
	if err := r.cache.Fill(ctx, u, gen); err != nil {
		r.log.Warn("cache fill failed", logger.UserID(id), logger.Err(err))
	}
	return u, nil
}

// Save writes through and invalidates.
func (r *CachedRepository) Save(ctx context.Context, u *user.User) error {
	if err := r.Repository.Save(ctx, u); err != nil {
		return err
	}
	return r.invalidate(ctx, "Save", u.ID)
}

// AddToSet writes through and invalidates.
func (r *CachedRepository) AddToSet(ctx context.Context, id string, set user.SetName, member string) error {
	if err := r.Repository.AddToSet(ctx, id, set, member); err != nil {
		return err
	}
	return r.invalidate(ctx, "AddToSet", id)
}

// RemoveFromSet writes through and invalidates.
func (r *CachedRepository) RemoveFromSet(ctx context.Context, id string, set user.SetName, member string) error {
	if err := r.Repository.RemoveFromSet(ctx, id, set, member); err != nil {
		return err
	}
	return r.invalidate(ctx, "RemoveFromSet", id)
}

func (r *CachedRepository) invalidate(ctx context.Context, op, id string) error {
	if err := r.cache.Invalidate(ctx, id); err != nil {
		r.log.Error("cache invalidation failed", logger.UserID(id), logger.Operation(op), logger.Err(err))
		return shared.Transient("user", op, fmt.Errorf("%w: %v", shared.ErrCacheOutOfSync, err))
	}
	return nil
}

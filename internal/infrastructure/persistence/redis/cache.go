// Package redis implements the Redis side of the service: a read-through user
// cache, a cross-instance per-user lock and the planned wake-up schedule.
//
// Key components:
//   - Cache: thin JSON/TTL wrapper over go-redis
//   - UserCache / CachedRepository: aggregate cache in front of the store
//   - Locker: SET NX PX lock with token-checked release
//   - WakeSchedule: sorted set of planned wake instants
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig targets a local Redis.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr is host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

var (
	// ErrCacheMiss means the key is absent or expired.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheSerialization wraps JSON failures. A corrupt entry is treated
	// as a miss by callers and never counts against the breaker.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheNilValue rejects storing nil.
	ErrCacheNilValue = errors.New("cache: value cannot be nil")
)

// Key layout. Every key the service writes starts with one of these.
const (
	PrefixUser      = "user:"
	PrefixLock      = "lock:"
	KeyWakeSchedule = "wake:schedule" // ZSET, score = unix seconds, member = "userID|alarmID"
)

const (
	// TTLUserCache bounds how stale a cached aggregate can be if an
	// invalidation is lost.
	TTLUserCache = 10 * time.Minute

	// TTLUserGeneration outlives any load that could race an invalidation.
	TTLUserGeneration = 24 * time.Hour

	// TTLDistributedLock is the default lock lease.
	TTLDistributedLock = 10 * time.Second
)

// UserKey is the cache key of a user aggregate.
func UserKey(userID string) string { return PrefixUser + userID }

// UserGenerationKey holds the token that fences cache fills for a user.
func UserGenerationKey(userID string) string { return PrefixUser + userID + ":gen" }

// LockKey is the key guarding resource.
func LockKey(resource string) string { return PrefixLock + resource }

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache owns the go-redis client and stores JSON values with a TTL.
type Cache struct {
	client redis.UniversalClient
}

// NewCache connects and pings within DialTimeout.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr(), err)
	}
	return &Cache{client: client}, nil
}

// Client exposes the connection to the lock, schedule and event bus.
func (c *Cache) Client() redis.UniversalClient { return c.client }

// Close closes the connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// Ping implements the health check.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Set stores value as JSON. A zero ttl keeps the key forever.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return ErrCacheNilValue
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the value under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes keys; missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

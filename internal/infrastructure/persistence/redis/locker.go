package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCK
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DefaultLockPoll is how often a blocked Lock retries SET NX.
const DefaultLockPoll = 25 * time.Millisecond

// Locker serializes work on a key across service instances. The lease
// expires after ttl so a crashed holder cannot block the key forever.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	log    *logger.Logger
}

// NewLocker creates a Locker over cache's client. A zero ttl gets
// TTLDistributedLock.
func NewLocker(cache *Cache, ttl time.Duration, log *logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Locker{
		client: cache.Client(),
		ttl:    ttl,
		poll:   DefaultLockPoll,
		log:    log.With(logger.Component("redis_lock")),
	}
}

// Lock blocks until key is acquired or ctx is done. The returned func
// releases the lock; calling it more than once is harmless.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := LockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(lockKey, token) })
	}, nil
}

func (l *Locker) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
		l.log.Warn("lock release failed", logger.String("key", lockKey), logger.Err(err))
	}
}

// Package command contains write operations (CQRS - Commands). Every handler
// that mutates a user aggregate runs inside that user's lock: load, apply the
// domain operation, save, then publish the recorded events.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// DefaultLockTimeout bounds how long a command waits for the user's lock.
const DefaultLockTimeout = 5 * time.Second

// Locker serializes work per key. *keylock.Locker and the Redis locker both
// implement it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Users     user.Repository
	Locker    Locker
	Publisher shared.EventPublisher
	Logger    *logger.Logger

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string

	LockTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = DefaultLockTimeout
	}
	return d
}

// UserResult is returned by commands whose only output is the updated user.
type UserResult struct {
	User *user.User
}

func lockKey(userID string) string {
	return "user:" + userID
}

// lock takes the user's lock. Failing to get it in time is transient.
func (d Deps) lock(ctx context.Context, op, userID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, d.LockTimeout)
	defer cancel()

	unlock, err := d.Locker.Lock(lockCtx, lockKey(userID))
	if err != nil {
		return nil, shared.WrapError("user", op, shared.ErrTransient, "user is busy, retry later", err)
	}
	return unlock, nil
}

// mutate runs apply on the freshly loaded user under the user's lock and
// persists the result. Events are published only after the save.
func (d Deps) mutate(ctx context.Context, op, userID string, apply func(u *user.User) error) (*user.User, error) {
	log := d.Logger.With(logger.UserID(userID), logger.Operation(op))

	unlock, err := d.lock(ctx, op, userID)
	if err != nil {
		log.Warn("lock not acquired", logger.Err(err))
		return nil, err
	}
	defer unlock()

	u, err := d.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := apply(u); err != nil {
		return nil, err
	}

	if err := d.Users.Save(ctx, u); err != nil {
		if errors.Is(err, shared.ErrCacheOutOfSync) {
			// the store has the new state; subscribers must still hear about it
			d.publish(log, u.PullEvents())
		}
		if shared.IsTransient(err) {
			log.Warn("save failed", logger.Err(err))
		}
		return nil, err
	}

	d.publish(log, u.PullEvents())
	return u, nil
}

func (d Deps) publish(log *logger.Logger, events []shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			log.Error("publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}

func requireUserID(op, userID string) error {
	if userID == "" {
		return shared.NewDomainError("user", op, shared.ErrValidation, "user_id is required")
	}
	return nil
}

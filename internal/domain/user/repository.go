package user

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Field is a unique lookup column.
type Field string

const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
)

// SetName is one of the friend-list arrays that support atomic add/remove.
type SetName string

const (
	SetFriends  SetName = "friends"
	SetOutgoing SetName = "outgoing_requests"
	SetIncoming SetName = "incoming_requests"
)

// IsValid checks the set is one the store knows.
func (s SetName) IsValid() bool {
	switch s {
	case SetFriends, SetOutgoing, SetIncoming:
		return true
	}
	return false
}

// Repository persists user aggregates. Store failures are reported as
// shared.ErrTransient so callers can tell them from business errors.
type Repository interface {
	// Create stores a new user.
	// Returns ErrUserAlreadyExists if the email or username is taken.
	Create(ctx context.Context, u *User) error

	// FindByID returns ErrUserNotFound if there is no such user.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByField looks a user up by a unique field.
	FindByField(ctx context.Context, field Field, value string) (*User, error)

	// Save writes u if the stored version equals u.Version and bumps it.
	// Returns ErrVersionConflict otherwise. Friend sets are not written by
	// Save; use AddToSet and RemoveFromSet.
	Save(ctx context.Context, u *User) error

	// AddToSet adds member to the named set of user id. Adding a present
	// member is a no-op.
	AddToSet(ctx context.Context, id string, set SetName, member string) error

	// RemoveFromSet removes member from the named set. Removing an absent
	// member is a no-op.
	RemoveFromSet(ctx context.Context, id string, set SetName, member string) error

	// ListIDs returns every user id in creation order.
	ListIDs(ctx context.Context) ([]string, error)
}

// Cache holds read-through copies of aggregates. Every Invalidate moves the
// id to a new generation; a Fill made with an older generation is dropped, so
// a load that raced a write cannot put the old copy back.
type Cache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, id string) (*User, error)

	// Generation returns the current generation of id. Read it before
	// loading from the store.
	Generation(ctx context.Context, id string) (string, error)

	// Fill stores u unless id was invalidated after gen was read.
	Fill(ctx context.Context, u *User, gen string) error

	Invalidate(ctx context.Context, id string) error
}

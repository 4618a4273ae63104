// Package memory is an in-process user store with the same semantics as the
// PostgreSQL one. It backs tests and single-node development runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// UserRepository implements user.Repository in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
	order []string

	// failNext, when set, is returned (wrapped as transient) by the call
	// after failSkip more calls and then cleared. Tests use it to simulate
	// store outages.
	failNext error
	failSkip int
}

// NewUserRepository creates an empty store.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*user.User)}
}

// FailNext makes the next repository call fail with a transient error.
func (r *UserRepository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
	r.failSkip = 0
}

// FailNextAfter lets n calls succeed and fails the one after them.
func (r *UserRepository) FailNextAfter(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
	r.failSkip = n
}

func (r *UserRepository) injected(op string) error {
	if r.failNext == nil {
		return nil
	}
	if r.failSkip > 0 {
		r.failSkip--
		return nil
	}
	err := r.failNext
	r.failNext = nil
	return shared.Transient("user", op, err)
}

// Create stores a copy of u with version 1.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return shared.Transient("user", "Create", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("Create"); err != nil {
		return err
	}

	if _, ok := r.users[u.ID]; ok {
		return shared.ErrUserAlreadyExists
	}
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return shared.ErrUserAlreadyExists
		}
	}

	u.Version = 1
	stored := u.Clone()
	stored.Normalize()
	r.users[u.ID] = stored
	r.order = append(r.order, u.ID)
	return nil
}

// FindByID returns a copy of the stored user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Transient("user", "FindByID", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("FindByID"); err != nil {
		return nil, err
	}

	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u.Clone(), nil
}

// FindByField looks a user up by email or username.
func (r *UserRepository) FindByField(ctx context.Context, field user.Field, value string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Transient("user", "FindByField", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("FindByField"); err != nil {
		return nil, err
	}

	for _, id := range r.order {
		u := r.users[id]
		switch field {
		case user.FieldEmail:
			if u.Email == user.NormalizeEmail(value) {
				return u.Clone(), nil
			}
		case user.FieldUsername:
			if u.Username == value {
				return u.Clone(), nil
			}
		default:
			return nil, shared.NewDomainError("user", "FindByField", shared.ErrValidation, fmt.Sprintf("unsupported field %q", field))
		}
	}
	return nil, shared.ErrUserNotFound
}

// Save replaces the aggregate body if the version matches. Friend sets keep
// their stored values.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return shared.Transient("user", "Save", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("Save"); err != nil {
		return err
	}

	stored, ok := r.users[u.ID]
	if !ok {
		return shared.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return shared.ErrVersionConflict
	}

	next := u.Clone()
	next.Friends = stored.Friends
	next.OutgoingRequests = stored.OutgoingRequests
	next.IncomingRequests = stored.IncomingRequests
	next.Version = stored.Version + 1
	r.users[u.ID] = next

	u.Version = next.Version
	return nil
}

// AddToSet appends member unless present.
func (r *UserRepository) AddToSet(ctx context.Context, id string, set user.SetName, member string) error {
	return r.updateSet(ctx, "AddToSet", id, set, func(s []string) []string {
		for _, v := range s {
			if v == member {
				return s
			}
		}
		return append(s, member)
	})
}

// RemoveFromSet removes every occurrence of member.
func (r *UserRepository) RemoveFromSet(ctx context.Context, id string, set user.SetName, member string) error {
	return r.updateSet(ctx, "RemoveFromSet", id, set, func(s []string) []string {
		out := make([]string, 0, len(s))
		for _, v := range s {
			if v != member {
				out = append(out, v)
			}
		}
		return out
	})
}

func (r *UserRepository) updateSet(ctx context.Context, op, id string, set user.SetName, apply func([]string) []string) error {
	if err := ctx.Err(); err != nil {
		return shared.Transient("user", op, err)
	}
	if !set.IsValid() {
		return shared.NewDomainError("user", op, shared.ErrValidation, fmt.Sprintf("unknown set %q", set))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(op); err != nil {
		return err
	}

	u, ok := r.users[id]
	if !ok {
		return shared.ErrUserNotFound
	}
	switch set {
	case user.SetFriends:
		u.Friends = apply(append([]string(nil), u.Friends...))
	case user.SetOutgoing:
		u.OutgoingRequests = apply(append([]string(nil), u.OutgoingRequests...))
	case user.SetIncoming:
		u.IncomingRequests = apply(append([]string(nil), u.IncomingRequests...))
	}
	return nil
}

// ListIDs returns ids in creation order.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Transient("user", "ListIDs", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListIDs"); err != nil {
		return nil, err
	}
	return append([]string(nil), r.order...), nil
}

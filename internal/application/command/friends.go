package command

import (
	"context"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FRIEND COMMANDS
// Both sides change through the store's idempotent set primitives. Additions
// run before removals, so a failed call leaves the pair in a state the same
// call can finish on retry.
// ══════════════════════════════════════════════════════════════════════════════

// FriendCommand names the acting user and the other party.
type FriendCommand struct {
	UserID  string
	OtherID string
}

// Validate validates the command.
func (c FriendCommand) Validate(op string) error {
	if err := requireUserID(op, c.UserID); err != nil {
		return err
	}
	if c.OtherID == "" {
		return shared.NewDomainError("social", op, shared.ErrValidation, "friend_id is required")
	}
	if c.OtherID == c.UserID {
		return shared.ErrSelfFriendRequest
	}
	return nil
}

type setChange struct {
	add    bool
	userID string
	set    user.SetName
	member string
}

// FriendsHandler handles the four friend commands.
type FriendsHandler struct {
	deps Deps
}

// NewFriendsHandler creates a FriendsHandler.
func NewFriendsHandler(deps Deps) *FriendsHandler {
	return &FriendsHandler{deps: deps.withDefaults()}
}

// lockPair takes both users' locks in id order so that two opposite requests
// cannot deadlock.
func (h *FriendsHandler) lockPair(ctx context.Context, op, a, b string) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	unlockFirst, err := h.deps.lock(ctx, op, first)
	if err != nil {
		return nil, err
	}
	unlockSecond, err := h.deps.lock(ctx, op, second)
	if err != nil {
		unlockFirst()
		return nil, err
	}
	return func() {
		unlockSecond()
		unlockFirst()
	}, nil
}

// load returns both users, failing with NotFound if either is missing.
func (h *FriendsHandler) load(ctx context.Context, cmd FriendCommand) (*user.User, *user.User, error) {
	me, err := h.deps.Users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	other, err := h.deps.Users.FindByID(ctx, cmd.OtherID)
	if err != nil {
		return nil, nil, err
	}
	return me, other, nil
}

func (h *FriendsHandler) apply(ctx context.Context, changes []setChange) error {
	for _, c := range changes {
		var err error
		if c.add {
			err = h.deps.Users.AddToSet(ctx, c.userID, c.set, c.member)
		} else {
			err = h.deps.Users.RemoveFromSet(ctx, c.userID, c.set, c.member)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// run executes plan under both locks, then publishes and returns the acting
// user as stored.
func (h *FriendsHandler) run(ctx context.Context, op string, cmd FriendCommand,
	plan func(me, other *user.User) ([]setChange, []shared.Event, error)) (*UserResult, error) {
	if err := cmd.Validate(op); err != nil {
		return nil, err
	}
	log := h.deps.Logger.With(logger.UserID(cmd.UserID), logger.Operation(op), logger.String("other_id", cmd.OtherID))

	unlock, err := h.lockPair(ctx, op, cmd.UserID, cmd.OtherID)
	if err != nil {
		log.Warn("lock not acquired", logger.Err(err))
		return nil, err
	}
	defer unlock()

	me, other, err := h.load(ctx, cmd)
	if err != nil {
		return nil, err
	}

	changes, events, err := plan(me, other)
	if err != nil {
		return nil, err
	}
	if err := h.apply(ctx, changes); err != nil {
		if shared.IsTransient(err) {
			log.Warn("friend update incomplete", logger.Err(err))
		}
		return nil, err
	}
	h.deps.publish(log, events)

	me, err = h.deps.Users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	return &UserResult{User: me}, nil
}

func befriend(a, b string) []setChange {
	return []setChange{
		{add: true, userID: a, set: user.SetFriends, member: b},
		{add: true, userID: b, set: user.SetFriends, member: a},
		{userID: a, set: user.SetIncoming, member: b},
		{userID: a, set: user.SetOutgoing, member: b},
		{userID: b, set: user.SetIncoming, member: a},
		{userID: b, set: user.SetOutgoing, member: a},
	}
}

func friendshipMade(a, b string) []shared.Event {
	return []shared.Event{
		shared.NewFriendEvent(shared.EventFriendshipMade, a, b),
		shared.NewFriendEvent(shared.EventFriendshipMade, b, a),
	}
}

// settled reports whether both sides hold the friendship and no request
// between them is left over.
func settled(me, other *user.User) bool {
	return me.IsFriend(other.ID) && other.IsFriend(me.ID) &&
		!me.HasIncoming(other.ID) && !me.HasOutgoing(other.ID) &&
		!other.HasIncoming(me.ID) && !other.HasOutgoing(me.ID)
}

// SendRequest records a pending request from UserID to OtherID. If OtherID
// already asked UserID the two become friends instead.
func (h *FriendsHandler) SendRequest(ctx context.Context, cmd FriendCommand) (*UserResult, error) {
	return h.run(ctx, "SendFriendRequest", cmd, func(me, other *user.User) ([]setChange, []shared.Event, error) {
		if me.IsFriend(other.ID) && !settled(me, other) {
			// finish a previously interrupted mutual request
			return befriend(me.ID, other.ID), nil, nil
		}
		if err := me.CanRequest(other.ID); err != nil {
			return nil, nil, err
		}
		if me.HasIncoming(other.ID) {
			return befriend(me.ID, other.ID), friendshipMade(me.ID, other.ID), nil
		}
		changes := []setChange{
			{add: true, userID: me.ID, set: user.SetOutgoing, member: other.ID},
			{add: true, userID: other.ID, set: user.SetIncoming, member: me.ID},
		}
		return changes, []shared.Event{shared.NewFriendEvent(shared.EventFriendRequestSent, me.ID, other.ID)}, nil
	})
}

// AcceptRequest accepts the pending request OtherID sent to UserID.
// Accepting an existing friend is a no-op.
func (h *FriendsHandler) AcceptRequest(ctx context.Context, cmd FriendCommand) (*UserResult, error) {
	return h.run(ctx, "AcceptFriendRequest", cmd, func(me, other *user.User) ([]setChange, []shared.Event, error) {
		if me.HasIncoming(other.ID) {
			return befriend(me.ID, other.ID), friendshipMade(me.ID, other.ID), nil
		}
		if me.IsFriend(other.ID) {
			// finish a previously interrupted accept
			return befriend(me.ID, other.ID), nil, nil
		}
		return nil, nil, shared.ErrFriendRequestAbsent
	})
}

// DeclineRequest drops the pending request OtherID sent to UserID. Declining
// nothing is a no-op.
func (h *FriendsHandler) DeclineRequest(ctx context.Context, cmd FriendCommand) (*UserResult, error) {
	return h.run(ctx, "DeclineFriendRequest", cmd, func(me, other *user.User) ([]setChange, []shared.Event, error) {
		changes := []setChange{
			{userID: me.ID, set: user.SetIncoming, member: other.ID},
			{userID: other.ID, set: user.SetOutgoing, member: me.ID},
		}
		return changes, nil, nil
	})
}

// RemoveFriend ends the friendship on both sides. Removing a non-friend is a
// no-op.
func (h *FriendsHandler) RemoveFriend(ctx context.Context, cmd FriendCommand) (*UserResult, error) {
	return h.run(ctx, "RemoveFriend", cmd, func(me, other *user.User) ([]setChange, []shared.Event, error) {
		changes := []setChange{
			{userID: me.ID, set: user.SetFriends, member: other.ID},
			{userID: other.ID, set: user.SetFriends, member: me.ID},
		}
		var events []shared.Event
		if me.IsFriend(other.ID) {
			events = append(events, shared.NewFriendEvent(shared.EventFriendshipEnded, me.ID, other.ID))
		}
		return changes, events, nil
	})
}

package command

import (
	"context"
	"fmt"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLECT REWARD COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CollectRewardCommand collects the reward of a completed challenge level and
// advances the challenge.
type CollectRewardCommand struct {
	UserID    string
	Challenge string

	// ExpectedLevel, when set, rejects the call if the challenge has moved on
	// since the client read it.
	ExpectedLevel *int
}

// Validate validates the command.
func (c CollectRewardCommand) Validate() error {
	if err := requireUserID("CollectReward", c.UserID); err != nil {
		return err
	}
	if _, ok := challenge.ParseName(c.Challenge); !ok {
		return shared.WrapError("challenge", "Collect", shared.ErrNotFound, fmt.Sprintf("unknown challenge %q", c.Challenge), shared.ErrUnknownChallenge)
	}
	return nil
}

// RewardResult is the updated user plus the credited reward.
type RewardResult struct {
	User   *user.User
	Reward challenge.Reward
}

// CollectRewardHandler handles CollectRewardCommand.
type CollectRewardHandler struct {
	deps Deps
}

// NewCollectRewardHandler creates a CollectRewardHandler.
func NewCollectRewardHandler(deps Deps) *CollectRewardHandler {
	return &CollectRewardHandler{deps: deps.withDefaults()}
}

// Handle credits the reward. Two concurrent calls for the same completion
// credit it once: the second sees the cleared flag and fails.
func (h *CollectRewardHandler) Handle(ctx context.Context, cmd CollectRewardCommand) (*RewardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	name, _ := challenge.ParseName(cmd.Challenge)

	var reward challenge.Reward
	u, err := h.deps.mutate(ctx, "CollectReward", cmd.UserID, func(u *user.User) error {
		var err error
		reward, err = u.CollectReward(name, cmd.ExpectedLevel, h.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("reward collected",
		logger.UserID(u.ID),
		logger.ChallengeName(string(reward.Name)),
		logger.Int("level", reward.Level),
		logger.XPAmount(reward.XP),
	)
	return &RewardResult{User: u, Reward: reward}, nil
}

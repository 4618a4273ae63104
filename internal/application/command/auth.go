package command

import (
	"context"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNUP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// Password length bounds. bcrypt ignores bytes past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// SignupCommand registers a new user.
type SignupCommand struct {
	Email       string
	Username    string
	Password    string
	DisplayName string

	// Timezone is an IANA name; empty means UTC.
	Timezone string
}

// Validate validates the command.
func (c SignupCommand) Validate() error {
	n := utf8.RuneCountInString(c.Password)
	if n < MinPasswordLength || len(c.Password) > MaxPasswordLength {
		return shared.NewDomainError("user", "Signup", shared.ErrValidation, "password must be 8-72 bytes")
	}
	return nil
}

// SignupHandler handles SignupCommand.
type SignupHandler struct {
	deps Deps
	cost int
}

// NewSignupHandler creates a SignupHandler. A zero cost gets bcrypt.DefaultCost.
func NewSignupHandler(deps Deps, cost int) *SignupHandler {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &SignupHandler{deps: deps.withDefaults(), cost: cost}
}

// Handle hashes the password and creates the user.
func (h *SignupHandler) Handle(ctx context.Context, cmd SignupCommand) (*UserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.cost)
	if err != nil {
		return nil, shared.WrapError("user", "Signup", shared.ErrValidation, "password cannot be hashed", err)
	}

	u, err := user.New(user.NewUserParams{
		ID:           h.deps.NewID(),
		Email:        cmd.Email,
		Username:     cmd.Username,
		PasswordHash: string(hash),
		DisplayName:  cmd.DisplayName,
		Timezone:     cmd.Timezone,
	}, h.deps.Now())
	if err != nil {
		return nil, err
	}

	if err := h.deps.Users.Create(ctx, u); err != nil {
		return nil, err
	}

	log := h.deps.Logger.With(logger.UserID(u.ID), logger.Operation("Signup"))
	h.deps.publish(log, u.PullEvents())
	log.Info("user registered", logger.String("username", u.Username))

	return &UserResult{User: u}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SIGNIN COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SigninCommand checks credentials.
type SigninCommand struct {
	Email    string
	Password string
}

// SigninHandler handles SigninCommand.
type SigninHandler struct {
	deps Deps
}

// NewSigninHandler creates a SigninHandler.
func NewSigninHandler(deps Deps) *SigninHandler {
	return &SigninHandler{deps: deps.withDefaults()}
}

// Handle returns the user for valid credentials. Unknown email and wrong
// password are indistinguishable to the caller.
func (h *SigninHandler) Handle(ctx context.Context, cmd SigninCommand) (*UserResult, error) {
	u, err := h.deps.Users.FindByField(ctx, user.FieldEmail, cmd.Email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrBadCredentials
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cmd.Password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.deps.Logger.Warn("password check failed", logger.UserID(u.ID), logger.Err(err))
		}
		return nil, shared.ErrBadCredentials
	}

	return &UserResult{User: u}, nil
}

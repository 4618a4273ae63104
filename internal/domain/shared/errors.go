// Package shared is the kernel every domain package builds on: the error
// kinds the HTTP layer maps to status codes, and the domain events.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")

	// Store, network and coordination failures. Safe to retry.
	ErrTransient = errors.New("transient failure")

	// ErrCacheOutOfSync marks a write that reached the store while the cached
	// copy could not be dropped. It is always wrapped as transient.
	ErrCacheOutOfSync = errors.New("cache out of sync")
)

// DomainError is a failure of operation Op in Domain ("sleep", "End"). Kind
// is one of the error kinds above; Err is the optional cause.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap yields the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the same sentinel pointer, the kind or anything in the cause.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e == t
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError builds an error without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError attaches domain context to err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Transient wraps a store or network failure so callers can decide to retry.
func Transient(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrTransient, "temporarily unavailable", err)
}

// User domain errors
var (
	ErrUserNotFound      = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists = NewDomainError("user", "Create", ErrConflict, "user already exists")
	ErrBadCredentials    = NewDomainError("user", "Signin", ErrUnauthorized, "invalid email or password")
	ErrVersionConflict   = NewDomainError("user", "Save", ErrConflict, "user was modified concurrently")
)

// Alarm domain errors
var (
	ErrAlarmNotFound    = NewDomainError("alarm", "Find", ErrNotFound, "alarm not found")
	ErrInvalidTimeOfDay = NewDomainError("alarm", "Validate", ErrValidation, "time of day must be within 00:00-23:59")
	ErrInvalidWeekday   = NewDomainError("alarm", "Validate", ErrValidation, "unknown weekday")
)

// Sleep domain errors
var (
	ErrSessionNotFound      = NewDomainError("sleep", "End", ErrNotFound, "sleep session not found")
	ErrSessionAlreadyOpen   = NewDomainError("sleep", "Start", ErrConflict, "a sleep session is already open")
	ErrSessionAlreadyClosed = NewDomainError("sleep", "End", ErrInvalidState, "sleep session already ended")
	ErrSessionStillOpen     = NewDomainError("sleep", "Duration", ErrInvalidState, "sleep session is still open")
	ErrEndBeforeStart       = NewDomainError("sleep", "End", ErrValidation, "end time precedes start time")
	ErrInvalidWakeUpGame    = NewDomainError("sleep", "SaveWakeUp", ErrValidation, "unknown wake-up game")
)

// Challenge domain errors
var (
	ErrUnknownChallenge      = NewDomainError("challenge", "Find", ErrNotFound, "unknown challenge")
	ErrChallengeNotCompleted = NewDomainError("challenge", "Collect", ErrInvalidState, "challenge not completed")
	ErrChallengeMastered     = NewDomainError("challenge", "Collect", ErrInvalidState, "challenge already mastered")
	ErrChallengeLevelChanged = NewDomainError("challenge", "Collect", ErrConflict, "challenge level changed, reward already collected")
)

// Friend errors
var (
	ErrSelfFriendRequest   = NewDomainError("social", "SendRequest", ErrValidation, "cannot befriend yourself")
	ErrAlreadyFriends      = NewDomainError("social", "SendRequest", ErrConflict, "users are already friends")
	ErrFriendRequestAbsent = NewDomainError("social", "AcceptRequest", ErrNotFound, "friend request not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState checks if the error is a state-machine violation.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsTransient checks if the operation can be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

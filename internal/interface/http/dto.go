package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Username    string `json:"username" validate:"required,min=3,max=32"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Timezone    string `json:"timezone" validate:"omitempty,max=64"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type createAlarmRequest struct {
	UserID string   `json:"user_id" validate:"required"`
	Hour   *int     `json:"hour" validate:"required,min=0,max=23"`
	Minute *int     `json:"minute" validate:"required,min=0,max=59"`
	Days   []string `json:"days" validate:"required,min=1,max=7"`
	Label  string   `json:"label" validate:"max=64"`
}

type editAlarmRequest struct {
	UserID  string   `json:"user_id" validate:"required"`
	AlarmID string   `json:"alarm_id" validate:"required"`
	Hour    *int     `json:"hour" validate:"omitempty,min=0,max=23"`
	Minute  *int     `json:"minute" validate:"omitempty,min=0,max=59"`
	Days    []string `json:"days" validate:"omitempty,min=1,max=7"`
	Label   *string  `json:"label" validate:"omitempty,max=64"`
}

type toggleAlarmRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	AlarmID string `json:"alarm_id" validate:"required"`
	Enabled *bool  `json:"enabled"`
}

type alarmRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	AlarmID string `json:"alarm_id" validate:"required"`
}

type endSleepRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id"`
}

type wakeUpRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	SessionID    string `json:"session_id"`
	Game         string `json:"game" validate:"required"`
	SnoozeCount  int    `json:"snooze_count" validate:"min=0"`
	SolveSeconds int    `json:"solve_seconds" validate:"min=0"`
}

type nextChallengeRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	Challenge     string `json:"challenge" validate:"required"`
	ExpectedLevel *int   `json:"expected_level" validate:"omitempty,min=0"`
}

type friendRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	FriendID string `json:"friend_id" validate:"required"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body of at most limit bytes into dst and validates it.
// Failures come back as validation errors.
func decode(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			return badRequest("malformed JSON: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return badRequest(describe(fieldErrs))
		}
		return badRequest(err.Error())
	}
	return nil
}

func badRequest(message string) error {
	return shared.NewDomainError("http", "Decode", shared.ErrValidation, message)
}

// describe renders validator failures as one message.
func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be an email address")
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", field, bound(fe.Tag()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %q", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard JSON response format.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", logger.Err(err))
	}
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode error response", logger.Err(err))
	}
}

// errorStatus maps an error kind to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, shared.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// writeError renders err with the status of its kind. Domain errors carry
// their message to the client; anything else is logged and masked.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	message := "An unexpected error occurred"
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	log := logger.FromContext(r.Context())
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		log.Warn("request failed", logger.Err(err))
	case status >= http.StatusInternalServerError:
		log.Error("request failed", logger.Err(err))
	}

	writeJSONError(w, r, status, code, message)
}

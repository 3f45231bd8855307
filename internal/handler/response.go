package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "user not found with id abc123"}
//
// Success bodies for the original endpoints keep their historical shape
// ({"message": ...} plus payload), since the frontend parses them as-is.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/matchday-predictor/internal/apperror"
)

// maxBodyBytes caps request bodies. A prediction is a few hundred bytes.
const maxBodyBytes = 64 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
	Field   string `json:"field,omitempty"`
}

// MessageResponse is the bare {"message": ...} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps a domain error to its HTTP status and machine-readable type.
//
// errors.Is walks the whole chain, so this works through any number of
// fmt.Errorf("...: %w") layers added by the services.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrStore):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it. The service layer never knows about status codes; this is the
// only place they are chosen.
//
// Unknown errors get a generic 500 body. Raw messages can carry file paths
// or SQL and are never echoed to the client; store errors only expose the
// operation name.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := statusOf(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// logFailure logs err at Error for server-side failures and at Debug for
// client mistakes, which are already answered with a 4xx.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	status, _ := statusOf(err)
	attrs = append(attrs, slog.String("error", err.Error()))
	if status >= http.StatusInternalServerError {
		logger.Error(msg, attrs...)
		return
	}
	logger.Debug(msg, attrs...)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	default:
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
}

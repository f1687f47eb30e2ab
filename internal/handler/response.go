package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "conflict", "message": "Email sudah terdaftar"}
//
// "message" is what the front-end shows; "error" is a stable machine kind.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/autodealer/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is a body that only carries a message.
type MessageResponse struct {
	Message string `json:"message"`
}

const internalErrorMessage = "Terjadi kesalahan pada server"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be written before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and machine kind.
//
// ERROR MAPPING:
//
//	ErrValidation → 400 validation_error
//	ErrConflict   → 400 conflict (a taken email is a form error to the client)
//	ErrIdentity   → 400 identity_error
//	ErrAuth       → 401 unauthorized
//	ErrNotFound   → 404 not_found
//	ErrUpload     → 500 upload_failed
//	anything else → 500 internal_error
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, apperror.ErrIdentity):
		return http.StatusBadRequest, "identity_error"
	case errors.Is(err, apperror.ErrAuth):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUpload):
		return http.StatusInternalServerError, "upload_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.As finds the *AppError anywhere in the wrap chain, so services may
// add context with fmt.Errorf("...: %w", err) freely. Errors that are not
// AppErrors never reach the client; their text may contain SQL or paths.
func writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: internalErrorMessage,
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
	})
}

// respondError logs server-side failures with the request id and writes
// the mapped error response.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("requestID", requestID(r)),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

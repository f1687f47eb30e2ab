// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinels below.
// The HTTP layer never inspects messages; it maps the sentinel with
// errors.Is and forwards Message to the client untouched.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("unauthorized")
	ErrUpload     = errors.New("upload failed")
	ErrIdentity   = errors.New("identity error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on field. The message names the
// field only, never the conflicting value.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// InvalidCredentials is the single login failure. It deliberately carries
// the same message whether the email was unknown or the password wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: "Email atau password salah",
	}
}

// Unauthorized wraps ErrAuth with a custom message, e.g. a wrong current
// password during a profile update.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// UploadFailed wraps a remote asset store rejection. cause is kept for logs
// and errors.Is but never shown to the client.
func UploadFailed(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpload, cause),
		Message: "Gagal mengunggah foto profil",
	}
}

// IdentityFailed reports an external identity that cannot be reconciled.
func IdentityFailed(message string) *AppError {
	return &AppError{
		Err:     ErrIdentity,
		Message: message,
	}
}

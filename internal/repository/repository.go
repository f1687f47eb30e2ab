// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (sqlite).
package repository

import (
	"context"
	"strings"

	"github.com/sakif/autodealer/internal/model"
)

// UserRepository is the Credential Store.
//
// Lookups return (nil, apperror.ErrNotFound) when nothing matches. Email
// arguments are normalized by the implementation, so callers may pass raw
// user input.
//
// Create and Save hash a password staged with model.User.SetPassword and
// fail with apperror.ErrConflict when the email or provider id is taken,
// or apperror.ErrValidation when a required field is missing.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByExternalID(ctx context.Context, providerID string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	Count(ctx context.Context) (int, error)
}

// PasswordHasher is what a store needs to resolve a staged password.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// NormalizeEmail trims and lower-cases an address. Every lookup and write
// goes through it so that "A@X.com " and "a@x.com" are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

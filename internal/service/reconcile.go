package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/autodealer/internal/apperror"
	"github.com/sakif/autodealer/internal/model"
	"github.com/sakif/autodealer/internal/repository"
)

// DefaultFirstName is used when the provider sends no usable name.
const DefaultFirstName = "Pengguna"

// IdentityReconciler maps a verified external profile onto exactly one
// local account.
//
// THE THREE CASES (evaluated in this order):
//
//  1. Existing link: a user already carries this provider id. Refresh the
//     avatar from the provider if it changed; otherwise write nothing.
//  2. Email collision: a local account owns the email. Link it by setting
//     the provider id and backfill the avatar and names only where empty.
//     Never creates a second user.
//  3. No match: create a provider-only account with no password.
//
// A profile without an email is rejected before any lookup or write. Email
// is the reconciliation key; an account without one is never created here.
type IdentityReconciler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewIdentityReconciler creates an IdentityReconciler.
func NewIdentityReconciler(users repository.UserRepository, logger *slog.Logger) *IdentityReconciler {
	return &IdentityReconciler{
		users:  users,
		logger: logger,
	}
}

// Reconcile returns the account the profile belongs to, linking or creating
// it as needed. Failures to identify the profile are apperror.ErrIdentity.
func (r *IdentityReconciler) Reconcile(ctx context.Context, p *model.ExternalProfile) (*model.User, error) {
	if p == nil || strings.TrimSpace(p.ProviderID) == "" {
		return nil, apperror.IdentityFailed("Profil Google tidak valid")
	}

	email := repository.NormalizeEmail(p.Email)
	if email == "" {
		return nil, apperror.IdentityFailed("Akun Google tidak memiliki email yang terverifikasi")
	}

	// Case 1: existing link.
	user, err := r.users.FindByExternalID(ctx, p.ProviderID)
	switch {
	case err == nil:
		return r.refreshLinked(ctx, user, p)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/reconcile: finding by provider id: %w", err)
	}

	// Case 2: a local account is being claimed.
	user, err = r.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.link(ctx, user, p)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/reconcile: finding by email: %w", err)
	}

	// Case 3: first sight of this person.
	return r.create(ctx, email, p)
}

func (r *IdentityReconciler) refreshLinked(ctx context.Context, user *model.User, p *model.ExternalProfile) (*model.User, error) {
	// An empty picture from the provider is "no information", not "remove".
	if p.AvatarURL == "" || p.AvatarURL == user.AvatarURL {
		return user, nil
	}

	user.AvatarURL = p.AvatarURL
	if err := r.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("service/reconcile: refreshing avatar for %s: %w", user.ID, err)
	}

	r.logger.Debug("oauth avatar refreshed", slog.String("userID", user.ID))
	return user, nil
}

func (r *IdentityReconciler) link(ctx context.Context, user *model.User, p *model.ExternalProfile) (*model.User, error) {
	if user.ExternalProviderID != "" {
		r.logger.Warn("oauth relinking account to a different provider id",
			slog.String("userID", user.ID),
		)
	}
	user.ExternalProviderID = p.ProviderID

	if user.AvatarURL == "" {
		user.AvatarURL = p.AvatarURL
	}

	first, last := providerNames(p)
	if strings.TrimSpace(user.FirstName) == "" {
		user.FirstName = first
	}
	if strings.TrimSpace(user.LastName) == "" {
		user.LastName = last
	}

	if err := r.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("service/reconcile: linking %s: %w", user.ID, err)
	}

	r.logger.Info("oauth identity linked to existing account", slog.String("userID", user.ID))
	return user, nil
}

func (r *IdentityReconciler) create(ctx context.Context, email string, p *model.ExternalProfile) (*model.User, error) {
	first, last := providerNames(p)

	user := &model.User{
		Email:              email,
		FirstName:          first,
		LastName:           last,
		ExternalProviderID: p.ProviderID,
		AvatarURL:          p.AvatarURL,
		Role:               model.RoleUser,
	}

	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/reconcile: creating account: %w", err)
	}

	r.logger.Info("account created from oauth identity", slog.String("userID", user.ID))
	return user, nil
}

// providerNames prefers the structured given/family names and falls back to
// splitting the display name at its first space.
func providerNames(p *model.ExternalProfile) (first, last string) {
	first = strings.TrimSpace(p.GivenName)
	last = strings.TrimSpace(p.FamilyName)

	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.Join(strings.Fields(p.DisplayName), " "), " ")
	}
	if first == "" {
		first = DefaultFirstName
	}
	return first, last
}

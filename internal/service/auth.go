// Package service holds the authentication business logic.
//
// AuthService is the Session Facade. It sits between the HTTP handlers and
// the store, hasher, token issuer and avatar manager:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//	                   ↘ AvatarStore (remote assets)
//	                   ↘ IdentityReconciler (OAuth accounts)
//
// KEY RESPONSIBILITIES:
//   - Register, Login, GetProfile and UpdateProfile
//   - Complete the Google OAuth callback: exchange, reconcile, issue a token
//   - Keep every rule away from HTTP concerns so it is testable with fakes
//
// Every successful operation that returns a token issues a new one.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/autodealer/internal/apperror"
	"github.com/sakif/autodealer/internal/auth"
	"github.com/sakif/autodealer/internal/model"
	"github.com/sakif/autodealer/internal/repository"
)

// ErrOAuthDisabled is returned by the OAuth entry points when no provider
// was configured.
var ErrOAuthDisabled = errors.New("service/auth: oauth login is not configured")

// AvatarStore uploads and removes profile pictures. *avatar.Manager
// satisfies it.
type AvatarStore interface {
	Upload(ctx context.Context, data []byte, originalFilename string) (string, error)
	Delete(ctx context.Context, url string)
}

// OAuthProvider is an external identity provider. *auth.GoogleProvider
// satisfies it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*model.ExternalProfile, error)
}

// Deps is everything an AuthService needs, assembled once at startup.
//
// OAuth is optional: leave it nil to run without Google login. Do not
// assign a nil *auth.GoogleProvider to it; a typed nil is not a nil
// interface.
type Deps struct {
	Users     repository.UserRepository
	Passwords *auth.PasswordService
	Tokens    *auth.TokenService
	Avatars   AvatarStore
	OAuth     OAuthProvider
	Logger    *slog.Logger
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users      repository.UserRepository
	passwords  *auth.PasswordService
	tokens     *auth.TokenService
	avatars    AvatarStore
	oauth      OAuthProvider
	reconciler *IdentityReconciler
	logger     *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(d Deps) *AuthService {
	return &AuthService{
		users:      d.Users,
		passwords:  d.Passwords,
		tokens:     d.Tokens,
		avatars:    d.Avatars,
		oauth:      d.OAuth,
		reconciler: NewIdentityReconciler(d.Users, d.Logger),
		logger:     d.Logger,
	}
}

// AuthResult is the public profile plus a freshly issued token. It
// serializes flat: {id, firstName, lastName, email, role, avatarUrl, token}.
type AuthResult struct {
	model.Profile
	Token string `json:"token"`
}

// RegisterInput is the payload of a new local account.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,bcryptmax"`
}

// LoginInput is an email/password pair.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AvatarUpload is a raw profile picture as received from the client.
type AvatarUpload struct {
	Data     []byte
	Filename string
}

// UpdateProfileInput carries the optional changes of a profile update.
// Blank names are ignored, never written.
type UpdateProfileInput struct {
	FirstName       string        `json:"firstName" validate:"max=100"`
	LastName        string        `json:"lastName" validate:"max=100"`
	CurrentPassword string        `json:"currentPassword"`
	NewPassword     string        `json:"newPassword" validate:"omitempty,min=6,bcryptmax"`
	RemoveAvatar    bool          `json:"removeAvatar"`
	Avatar          *AvatarUpload `json:"-"`
}

// Register creates a local password account and logs it in.
//
// Fails with apperror.ErrValidation for missing or malformed fields and
// apperror.ErrConflict if the email is already registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = repository.NormalizeEmail(in.Email)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperror.Conflict("email", "Email sudah terdaftar")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	user := &model.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      model.RoleUser,
	}
	user.SetPassword(in.Password)

	// The store still enforces uniqueness for a racing registration.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", mapHashError(err))
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))

	return s.result(user)
}

// Login authenticates an email/password pair.
//
// Unknown email and wrong password produce the same apperror.ErrAuth, so
// the response never reveals whether an account exists.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}

	ok, err := s.passwords.Verify(ctx, user.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if !ok {
		s.logger.Debug("login rejected", slog.String("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.result(user)
}

// GetProfile returns the public view of the user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := user.Profile()
	return &p, nil
}

// UpdateProfile applies name, password and avatar changes and persists them
// in a single write.
//
// PASSWORD:
// Changing an existing password requires currentPassword to verify. An
// account that has no password yet (created through Google) may set one
// without it.
//
// AVATAR (first match wins):
//  1. A new file: upload it, swap the URL, save, then delete the old asset.
//  2. RemoveAvatar with an avatar present: clear the URL, save, delete.
//  3. Otherwise the avatar is untouched.
//
// A failed upload returns before anything is written. Deleting the old
// asset is best-effort and never fails the update.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*AuthResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.FirstName); name != "" {
		user.FirstName = name
	}
	if name := strings.TrimSpace(in.LastName); name != "" {
		user.LastName = name
	}

	if in.NewPassword != "" {
		if user.HasPassword() {
			if in.CurrentPassword == "" {
				return nil, apperror.ValidationFailed("currentPassword", "Password saat ini wajib diisi")
			}
			ok, err := s.passwords.Verify(ctx, user.PasswordHash, in.CurrentPassword)
			if err != nil {
				return nil, fmt.Errorf("service/auth: verifying current password: %w", err)
			}
			if !ok {
				return nil, apperror.Unauthorized("Password saat ini salah")
			}
		}
		user.SetPassword(in.NewPassword)
	}

	var staleAvatar, uploadedAvatar string
	switch {
	case in.Avatar != nil:
		url, err := s.avatars.Upload(ctx, in.Avatar.Data, in.Avatar.Filename)
		if err != nil {
			return nil, err
		}
		staleAvatar, uploadedAvatar = user.AvatarURL, url
		user.AvatarURL = url

	case in.RemoveAvatar && user.AvatarURL != "":
		staleAvatar = user.AvatarURL
		user.AvatarURL = ""
	}

	if err := s.users.Save(ctx, user); err != nil {
		// The record still points at the old asset; drop the one nobody
		// references.
		if uploadedAvatar != "" {
			s.avatars.Delete(ctx, uploadedAvatar)
		}
		return nil, fmt.Errorf("service/auth: saving profile %s: %w", userID, mapHashError(err))
	}

	if staleAvatar != "" {
		s.avatars.Delete(ctx, staleAvatar)
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))

	return s.result(user)
}

// OAuthEnabled reports whether an OAuth provider was configured.
func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

// OAuthLoginURL returns the provider consent URL carrying state.
func (s *AuthService) OAuthLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.AuthURL(state), nil
}

// CompleteOAuth exchanges an authorization code for the provider profile
// and logs the reconciled account in.
func (s *AuthService) CompleteOAuth(ctx context.Context, code string) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, ErrOAuthDisabled
	}

	profile, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: oauth exchange: %w", err)
	}

	return s.LoginWithOAuth(ctx, profile)
}

// LoginWithOAuth reconciles a verified provider profile with the local
// accounts and issues a token for the result.
func (s *AuthService) LoginWithOAuth(ctx context.Context, profile *model.ExternalProfile) (*AuthResult, error) {
	user, err := s.reconciler.Reconcile(ctx, profile)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))

	return s.result(user)
}

func (s *AuthService) findUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, errUserNotFound()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errUserNotFound()
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// result issues a fresh token for user. Role and id come from the stored
// record, never from the request.
func (s *AuthService) result(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	return &AuthResult{
		Profile: user.Profile(),
		Token:   token,
	}, nil
}

func errUserNotFound() *apperror.AppError {
	return &apperror.AppError{
		Err:     apperror.ErrNotFound,
		Message: "Pengguna tidak ditemukan",
	}
}

// mapHashError turns a password the hasher refused into a validation error.
func mapHashError(err error) error {
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return apperror.ValidationFailed("password", "Password terlalu panjang")
	}
	return err
}

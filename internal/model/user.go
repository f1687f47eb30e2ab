// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorization level stored on a user. New accounts are always
// RoleUser; no flow in this service promotes a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the single persistent entity: one dealership account.
//
// CREDENTIALS:
// An account authenticates with a local password (PasswordHash), a linked
// Google identity (ExternalProviderID), or both. The store refuses to create
// a record with neither.
//
// OPTIONAL FIELDS:
// ExternalProviderID and AvatarURL use the empty string for "absent". The
// store writes NULL for an empty provider id so that its UNIQUE index only
// applies to linked accounts.
//
// PASSWORD CHANGES:
// Callers never assign PasswordHash directly. SetPassword records the new
// plaintext and marks the record dirty; the store's Create/Save path hashes
// it exactly once and calls ApplyPasswordHash. Saving a clean record never
// re-hashes anything.
type User struct {
	ID                 string    `json:"id"                 db:"id"`
	Email              string    `json:"email"              db:"email"`
	FirstName          string    `json:"firstName"          db:"first_name"`
	LastName           string    `json:"lastName"           db:"last_name"`
	PasswordHash       string    `json:"-"                  db:"password_hash"`
	ExternalProviderID string    `json:"externalProviderId" db:"external_provider_id"`
	Role               Role      `json:"role"               db:"role"`
	AvatarURL          string    `json:"avatarUrl"          db:"avatar_url"`
	CreatedAt          time.Time `json:"createdAt"          db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt"          db:"updated_at"`

	pendingPassword string
	passwordDirty   bool
}

// SetPassword stages a new plaintext password for hashing on the next write.
func (u *User) SetPassword(plaintext string) {
	u.pendingPassword = plaintext
	u.passwordDirty = true
}

// PendingPassword returns the staged plaintext and whether one is staged.
func (u *User) PendingPassword() (string, bool) {
	return u.pendingPassword, u.passwordDirty
}

// ApplyPasswordHash stores the hash of the staged password and clears the
// dirty flag along with the plaintext.
func (u *User) ApplyPasswordHash(hash string) {
	u.PasswordHash = hash
	u.pendingPassword = ""
	u.passwordDirty = false
}

// HasPassword reports whether the account has a local password credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasCredential reports whether the account can authenticate at all,
// counting a password that is staged but not yet hashed.
func (u *User) HasCredential() bool {
	return u.PasswordHash != "" || u.passwordDirty || u.ExternalProviderID != ""
}

// Profile is the public projection of a User. It never carries the password
// hash or the provider id.
type Profile struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Role      Role    `json:"role"`
	AvatarURL *string `json:"avatarUrl"` // null when the user has no avatar
}

// Profile builds the public view of u.
func (u *User) Profile() Profile {
	p := Profile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
	if u.AvatarURL != "" {
		avatar := u.AvatarURL
		p.AvatarURL = &avatar
	}
	return p
}

// ExternalProfile is a verified identity returned by the OAuth provider.
type ExternalProfile struct {
	ProviderID    string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	AvatarURL     string `json:"picture"`
}

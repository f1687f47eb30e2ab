package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/autodealer/internal/apperror"
	"github.com/sakif/autodealer/internal/model"
	"github.com/sakif/autodealer/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, first_name, last_name, password_hash,
	external_provider_id, role, avatar_url, created_at, updated_at`

// FindByEmail looks a user up by normalized email.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil, apperror.NotFound("user", "(empty email)")
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row, "email "+email)
}

// FindByExternalID looks a user up by the linked provider id.
func (db *DB) FindByExternalID(ctx context.Context, providerID string) (*model.User, error) {
	if providerID == "" {
		return nil, apperror.NotFound("user", "(empty provider id)")
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_provider_id = ?`, providerID)
	return scanUser(row, "provider "+providerID)
}

// FindByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, id)
}

// Count returns the number of stored users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// Create inserts a new user, assigning ID, Role (if unset) and timestamps
// in place on the caller's struct.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	if err := db.prepareWrite(ctx, user); err != nil {
		return err
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		nullString(user.PasswordHash),
		nullString(user.ExternalProviderID),
		string(user.Role),
		nullString(user.AvatarURL),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		user.ID = ""
		return translateWriteError(err, "inserting user")
	}

	return nil
}

// Save writes every mutable field of an existing user in a single UPDATE.
// The whole record is written at once so a profile update either lands
// completely or not at all.
func (db *DB) Save(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return apperror.ValidationFailed("id", "user id is required")
	}
	if err := db.prepareWrite(ctx, user); err != nil {
		return err
	}

	updatedAt := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, password_hash = ?,
		        external_provider_id = ?, role = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.FirstName,
		user.LastName,
		nullString(user.PasswordHash),
		nullString(user.ExternalProviderID),
		string(user.Role),
		nullString(user.AvatarURL),
		updatedAt,
		user.ID,
	)
	if err != nil {
		return translateWriteError(err, "updating user "+user.ID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}

	user.UpdatedAt = updatedAt
	return nil
}

// prepareWrite normalizes and validates a record and resolves a staged
// password. It runs before every INSERT and UPDATE.
func (db *DB) prepareWrite(ctx context.Context, user *model.User) error {
	user.Email = repository.NormalizeEmail(user.Email)
	if user.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if !user.Role.Valid() {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", user.Role))
	}

	if !user.HasCredential() {
		return apperror.ValidationFailed("password", "account needs a password or a linked provider")
	}

	// Only a staged password is hashed. A clean record keeps its stored hash.
	if plaintext, dirty := user.PendingPassword(); dirty {
		hash, err := db.hasher.Hash(ctx, plaintext)
		if err != nil {
			return fmt.Errorf("sqlite: hashing password: %w", err)
		}
		user.ApplyPasswordHash(hash)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, key string) (*model.User, error) {
	var (
		u                                   model.User
		role                                string
		passwordHash, providerID, avatarURL sql.NullString
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&passwordHash,
		&providerID,
		&role,
		&avatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	u.Role = model.Role(role)
	u.PasswordHash = passwordHash.String
	u.ExternalProviderID = providerID.String
	u.AvatarURL = avatarURL.String

	return &u, nil
}

// nullString maps "" to SQL NULL. Required for the sparse UNIQUE index on
// external_provider_id.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// translateWriteError turns constraint violations into domain errors. Any
// other failure is wrapped as an internal error.
//
// The primary result code is checked (code & 0xff) so this works whether or
// not the driver reports extended codes; the message names the column.
func translateWriteError(err error, op string) error {
	var sqlErr *msqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "users.email"):
			return apperror.Conflict("email", "Email sudah terdaftar")
		case strings.Contains(msg, "users.external_provider_id"):
			return apperror.Conflict("externalProviderId", "Akun Google sudah terhubung dengan pengguna lain")
		case strings.Contains(msg, "UNIQUE"):
			return apperror.Conflict("user", "Data pengguna sudah ada")
		default:
			return apperror.ValidationFailed("user", "Data pengguna tidak valid")
		}
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

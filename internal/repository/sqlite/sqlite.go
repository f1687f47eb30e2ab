// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database. It lives inside the Go binary as a single file.
// The credential store is a single table with two unique keys, which SQLite
// enforces for us without a separate database server.
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so the
// binary builds without CGo.
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/autodealer/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.UserRepository.
//
// The hasher resolves passwords staged on a model.User during Create/Save.
// It is the store's job (not the caller's) so that a password can never be
// persisted unhashed and a stored hash is never hashed twice.
type DB struct {
	conn   *sql.DB
	hasher repository.PasswordHasher
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/autodealer.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (great for tests, lost on close)
func New(dbPath string, hasher repository.PasswordHasher) (*DB, error) {
	if hasher == nil {
		return nil, errors.New("sqlite: password hasher must not be nil")
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives inside a single connection. Letting the
	// pool open a second one would silently give it an empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a profile update is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Concurrent writers wait for the lock instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, hasher: hasher}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so this runs on every start.
//
// SPARSE UNIQUENESS:
// SQLite treats NULLs as distinct in a UNIQUE index, so any number of
// password-only users may have a NULL external_provider_id while two linked
// users can never share one. The store therefore writes NULL, never an
// empty string, for an absent provider id.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL UNIQUE,
			first_name           TEXT NOT NULL DEFAULT '',
			last_name            TEXT NOT NULL DEFAULT '',
			password_hash        TEXT,
			external_provider_id TEXT UNIQUE,
			role                 TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			avatar_url           TEXT,
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (password_hash IS NOT NULL OR external_provider_id IS NOT NULL)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}

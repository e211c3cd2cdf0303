// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is the embedded backend: no database server to run, a single file on
// disk, or ":memory:" for tests. Production deployments normally use the
// postgres package instead; both satisfy the same contracts.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool. Users() and Locations() hand out the
// repository views over the same pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/geopoint.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
//
// PRAGMAS ARE PER CONNECTION:
// database/sql keeps a pool, and a PRAGMA executed with conn.Exec only reaches
// whichever connection served that call. File databases therefore get their
// pragmas through the DSN so that every pooled connection is configured.
// An in-memory database exists per connection, so it is pinned to one.
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath
	if !memory {
		dsn = "file:" + dbPath +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserStore {
	return &UserStore{conn: db.conn}
}

// Locations returns the location repository backed by this database.
func (db *DB) Locations() *LocationStore {
	return &LocationStore{conn: db.conn}
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it safe to run
// on every start.
func (db *DB) migrate() error {
	// external_id is UNIQUE: the constraint is what decides which of two
	// concurrent first logins creates the row.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			email       TEXT NOT NULL DEFAULT '',
			full_name   TEXT NOT NULL DEFAULT '',
			first_name  TEXT NOT NULL DEFAULT '',
			last_name   TEXT NOT NULL DEFAULT '',
			avatar      TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT '',
			last_seen   DATETIME,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_full_name ON users(full_name);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS locations (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			latitude   REAL NOT NULL,
			longitude  REAL NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_locations_created_at ON locations(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating locations table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
// The driver exposes the extended result code, which distinguishes UNIQUE
// from NOT NULL or CHECK failures.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// Fallback for errors that lost their type on the way through database/sql.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

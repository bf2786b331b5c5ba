// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is the default Data Store: a single file next to the binary, no
// server to run, and ":memory:" gives every test a fresh database.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/photoshare/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/photoshare.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite has a single writer, and every connection to ":memory:" is its
	// own database. One connection keeps both cases consistent.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// album_files rows reference albums; the pragma is per connection, which
	// is fine with a pool of one.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

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

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// email is UNIQUE: the constraint, not a pre-insert SELECT, decides
	// whether a registration is a duplicate.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	// user_id is intentionally not a foreign key: uploads for unknown owners
	// are accepted.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS albums (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			user_id     INTEGER NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_albums_user_id ON albums(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating albums table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS album_files (
			album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			path     TEXT NOT NULL,
			PRIMARY KEY (album_id, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating album_files table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate
// value for a UNIQUE column.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

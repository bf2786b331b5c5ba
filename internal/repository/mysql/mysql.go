// Package mysql implements the repository interfaces on MySQL. It is
// selected when DATABASE_HOST is set.
//
// The SQL mirrors the sqlite package; only the DDL and the duplicate-key
// detection differ.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sakif/photoshare/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// erDupEntry is MySQL's ER_DUP_ENTRY: a UNIQUE or PRIMARY KEY collision.
const erDupEntry = 1062

// Config describes how to reach the MySQL server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the go-sql-driver data source name. parseTime makes DATETIME
// columns scan into time.Time.
func (c Config) DSN() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// DB wraps the MySQL connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the pool, verifies connectivity and runs migrations. A failure
// here is fatal to startup: the caller logs it and exits.
func New(ctx context.Context, cfg Config) (*DB, error) {
	conn, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = maxOpen
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 3 * time.Minute
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(lifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the server is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: ping: %w", err)
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"accounts", `
			CREATE TABLE IF NOT EXISTS accounts (
				id            BIGINT AUTO_INCREMENT PRIMARY KEY,
				email         VARCHAR(255) NOT NULL,
				name          VARCHAR(255) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				created_at    DATETIME NOT NULL,
				UNIQUE KEY uq_accounts_email (email)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`},
		{"albums", `
			CREATE TABLE IF NOT EXISTS albums (
				id          BIGINT AUTO_INCREMENT PRIMARY KEY,
				title       TEXT NOT NULL,
				description TEXT NOT NULL,
				user_id     BIGINT NOT NULL,
				created_at  DATETIME NOT NULL,
				KEY idx_albums_user_id (user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		{"album_files", `
			CREATE TABLE IF NOT EXISTS album_files (
				album_id BIGINT NOT NULL,
				position INT NOT NULL,
				path     VARCHAR(512) NOT NULL,
				PRIMARY KEY (album_id, position),
				CONSTRAINT fk_album_files_album FOREIGN KEY (album_id)
					REFERENCES albums (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	}

	for _, s := range stmts {
		if _, err := db.conn.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == erDupEntry
}

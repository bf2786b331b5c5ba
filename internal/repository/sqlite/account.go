package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/model"
)

// CreateAccount inserts a new account and fills in its ID and CreatedAt.
//
// A second account with the same email trips the UNIQUE constraint on
// accounts.email; that is translated into apperror.Conflict. Two concurrent
// registrations therefore cannot both succeed.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.CreatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (email, name, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("sqlite: inserting account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading account id: %w", err)
	}
	account.ID = id

	return nil
}

// GetAccountByEmail looks an account up by exact email match.
// Returns apperror.ErrNotFound if no account has that email.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM accounts WHERE email = ?`,
		email,
	).Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.PasswordHash,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}

	return &a, nil
}

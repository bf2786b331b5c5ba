package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/model"
)

// CreateAccount inserts a new account. The uq_accounts_email index turns a
// duplicate email into ER_DUP_ENTRY, reported as apperror.Conflict.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.CreatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (email, name, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("mysql: inserting account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("mysql: reading account id: %w", err)
	}
	account.ID = id
	return nil
}

// GetAccountByEmail looks an account up by exact email match. The column
// uses a binary collation, so the comparison is case-sensitive as in SQLite.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM accounts WHERE email = ?`,
		email,
	).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("mysql: getting account by email: %w", err)
	}
	return &a, nil
}

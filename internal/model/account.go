// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is a registered user identity.
//
// PasswordHash holds a bcrypt hash, never the plaintext, and is excluded from
// JSON so no handler can leak it by accident.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

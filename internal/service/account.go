// Package service contains the business logic layer:
//
//	Handler (HTTP) → Service (rules, orchestration) → Repository / File Store
//
// Services accept plain values, never HTTP types, and return apperror values
// that handlers translate into status codes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/model"
	"github.com/sakif/photoshare/internal/repository"
)

const missingFieldsMessage = "please fill in all fields"

// AccountService handles registration and login.
type AccountService struct {
	accounts  repository.AccountRepository
	passwords *auth.PasswordService
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates an AccountService.
func NewAccountService(
	accounts repository.AccountRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates an account. email, name and password are all required.
//
// The password is stored as a bcrypt hash. Duplicate emails are detected by
// the store's unique constraint during the insert and reported as
// apperror.ErrConflict; there is no read-before-write.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (*model.Account, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	switch {
	case email == "":
		return nil, apperror.ValidationFailed("email", missingFieldsMessage)
	case name == "":
		return nil, apperror.ValidationFailed("name", missingFieldsMessage)
	case password == "":
		return nil, apperror.ValidationFailed("password", missingFieldsMessage)
	case len(password) > auth.MaxPasswordBytes:
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, err
	}

	account := &model.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration rejected: email taken", slog.String("email", email))
			return nil, err
		}
		return nil, s.storeFailure("failed to create account", err)
	}

	s.logger.Info("account created",
		slog.Int64("id", account.ID),
		slog.String("email", account.Email),
	)
	return account, nil
}

// Authenticate returns the account whose email and password match. The
// email is trimmed the same way Register trims it.
//
// An unknown email and a wrong password both produce the same
// apperror.Unauthenticated, and an unknown email still pays for one bcrypt
// comparison so response time does not reveal which emails exist.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthenticated()
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Verify(s.dummy(), password)
			return nil, apperror.Unauthenticated()
		}
		return nil, s.storeFailure("failed to look up account", err)
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// Not a bcrypt hash at all, e.g. a row written before hashing.
			s.logger.Warn("stored password hash is unusable",
				slog.Int64("id", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthenticated()
	}

	s.logger.Info("account authenticated", slog.Int64("id", account.ID))
	return account, nil
}

// dummy returns a hash to verify against when the email is unknown. It is
// computed on first use, at the service's cost.
func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.Hash("photoshare-timing-equalizer")
		if err != nil {
			s.logger.Error("failed to build dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// storeFailure logs the underlying cause and returns the client-safe
// apperror.Store.
func (s *AccountService) storeFailure(msg string, err error) error {
	s.logger.Error(msg, slog.String("error", err.Error()))
	return apperror.Store(err)
}

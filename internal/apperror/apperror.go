// Package apperror defines the application's error taxonomy.
//
// Every failure a caller can act on is an *AppError wrapping one of the
// sentinel errors below. Services return them, handlers translate them into
// HTTP status codes (see handler/response.go), and everything else is an
// unexpected internal error.
//
//	ErrValidation      → required input missing or malformed
//	ErrConflict        → uniqueness violation (duplicate email)
//	ErrUnauthenticated → credential mismatch
//	ErrStore           → any Data Store failure
//	ErrFileStore       → upload directory / write failure
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStore           = errors.New("store failure")
	ErrFileStore       = errors.New("file store failure")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // Human-readable error message, safe to show the client
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports that a resource with the given key already exists.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is deliberately vague: the caller must not learn whether
// the email or the password was wrong.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "wrong email or password",
	}
}

// Store wraps a Data Store failure. The cause is kept for logging and never
// reaches the client.
func Store(cause error) *AppError {
	return &AppError{
		Err:     ErrStore,
		Message: "database error",
		Cause:   cause,
	}
}

// FileStore wraps a failure writing to or moving within the uploads directory.
func FileStore(cause error) *AppError {
	return &AppError{
		Err:     ErrFileStore,
		Message: "file storage error",
		Cause:   cause,
	}
}

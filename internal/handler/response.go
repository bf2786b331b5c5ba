package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// content type and one error shape:
//
//	{"error": "validation_error", "message": "please fill in all fields"}
//
// Clients match on "error"; "message" is for people.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/photoshare/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "conflict"
	Message string `json:"message"` // human-readable description
}

// MessageResponse is the body of responses that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; once the body starts they are frozen.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status and error kind.
//
// Duplicate registrations and failed logins are client errors (400) rather
// than 409/401: existing clients only distinguish "bad input" from "server
// failure".
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusBadRequest, "invalid_credentials"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrFileStore):
		return http.StatusInternalServerError, "file_error"
	case errors.Is(err, apperror.ErrStore):
		return http.StatusInternalServerError, "store_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError translates err into a status code and ErrorResponse. Only the
// AppError message reaches the client; causes stay in the logs.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{
			Error:   kind,
			Message: "an internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
	})
}

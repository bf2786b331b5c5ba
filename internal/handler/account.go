package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/service"
)

// AccountHandler serves registration and login.
//
// tokens is optional. When nil, login answers with the account only and no
// token is issued.
type AccountHandler struct {
	accounts *service.AccountService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, tokens *auth.TokenService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful login. It never carries the
// password or its hash.
type LoginResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// HandleRegister creates an account.
//
// HTTP: POST /register
// BODY: {"email": "...", "name": "...", "password": "..."}
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid register JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if _, err := h.accounts.Register(r.Context(), req.Email, req.Name, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Account created successfully"})
}

// HandleLogin checks credentials and returns the account.
//
// HTTP: POST /login
// BODY: {"email": "...", "password": "..."}
//
// With a TokenService configured the response also carries a signed token,
// both in the body and as an HttpOnly cookie.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid login JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := LoginResponse{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
	}

	if h.tokens != nil {
		token, err := h.tokens.Generate(account.ID)
		if err != nil {
			h.logger.Error("token generation failed",
				slog.Int64("id", account.ID),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
		resp.Token = token

		http.SetCookie(w, &http.Cookie{
			Name:     auth.TokenCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(h.tokens.TTL().Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

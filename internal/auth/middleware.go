package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenCookie is the cookie /login stores the token in.
const TokenCookie = "token"

type contextKey string

const accountIDKey contextKey = "accountID"

// RequireAuth rejects requests without a valid token with 401 and stores the
// token's account id in the request context otherwise.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractAccountID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
		})
	}
}

// WithAccountID returns a copy of ctx carrying the authenticated account id.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

// AccountIDFromContext returns the authenticated account id, or (0, false)
// for anonymous requests.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(accountIDKey).(int64)
	return id, ok && id > 0
}

// extractAccountID reads the token from the Authorization header
// ("Bearer <jwt>") or, failing that, the token cookie.
func extractAccountID(r *http.Request, tokens *TokenService) (int64, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || raw == "" {
			return 0, errors.New("auth: malformed Authorization header")
		}
		return tokens.Validate(raw)
	}

	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return 0, err
	}
	return tokens.Validate(cookie.Value)
}

// Package middleware holds the HTTP middleware shared by the API routes.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"example.com/coursenotes/internal/auth"
	"example.com/coursenotes/internal/identity"
)

// Authenticator resolves an Authorization header value to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (identity.Identity, error)
}

// RequireAuth verifies the bearer credential and stores the identity in
// the request context. Auth failures are 401; anything else (directory
// down) is 500.
func RequireAuth(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				var ae *auth.AuthError
				if errors.As(err, &ae) {
					logger.Debug("authentication failed", "kind", ae.Kind, "err", err)
					writeError(w, http.StatusUnauthorized, ae.Kind.String())
					return
				}
				logger.Error("authenticate request", "err", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), who)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

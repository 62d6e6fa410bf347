package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/model"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenVerifier resolves a bearer token to an identity
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// Auth creates authentication middleware. Requests without a valid
// bearer token are rejected before reaching next.
func Auth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "auth"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r.Context(), ExtractToken(r))
			if err != nil {
				logger.Warn("connection rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Any("reason", err))
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity stored by Auth
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

// ExtractToken extracts the bearer token from the request
func ExtractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	// Browsers cannot set headers on a websocket handshake
	return r.URL.Query().Get("token")
}

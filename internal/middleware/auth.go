package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/pliu/chatvideo/internal/auth"
	"github.com/rs/zerolog/log"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// IdentityVerifier resolves a bearer token to the user it was issued for.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// AuthMiddleware requires an `Authorization: Bearer` header naming an
// active user and stores that user's id in the request context.
func AuthMiddleware(v IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := v.Verify(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
				return
			case errors.Is(err, auth.ErrInactiveUser):
				http.Error(w, "Inactive user", http.StatusForbidden)
				return
			case err != nil:
				log.Error().Err(err).Msg("An error occurred when verifying access token.")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the id stored by AuthMiddleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

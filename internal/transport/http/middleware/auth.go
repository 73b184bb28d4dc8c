package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hd-notes/notes-api/internal/domain"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
)

type contextKey string

const userKey contextKey = "current_user"

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

// RefreshCookie is the cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

type userLoader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type accessVerifier interface {
	VerifyAccess(tokenStr string) (*jwtinfra.AccessClaims, error)
}

// Auth is the session boundary: it extracts the access token from the cookie
// (or an Authorization header as fallback), verifies it, loads the referenced
// user, and injects the user into the request context. Requests with an
// absent, malformed or expired token, or a token whose user no longer
// exists, are rejected with 401.
func Auth(verifier accessVerifier, users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := accessTokenFrom(r)
			if tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized request")
				return
			}
			claims, err := verifier.VerifyAccess(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			u, err := users.Get(r.Context(), claims.UserID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid access token")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}

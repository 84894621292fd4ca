package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bryanwahyu/learncode/internal/application/identity"
)

type contextKey string

const IdentityKey contextKey = "identity"

// SessionCookie is read when no Authorization header is present.
const SessionCookie = "learncode_session"

// IdentityResolver turns a session token into the caller identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// FederationKeyAuth guards endpoints that only the trusted auth proxy may call.
func FederationKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get("X-Federation-Key"))
			// constant-time comparison to prevent timing attacks
			if got == "" || key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				unauthorized(w, "invalid federation key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects requests without a valid session before any
// handler runs, and stores the identity in the request context.
func RequireIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "Unauthorized")
				return
			}
			id, err := resolver.Resolve(r.Context(), token)
			if err != nil || id.UserID == "" {
				unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromContext extracts the identity set by RequireIdentity.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(identity.Identity)
	return id, ok && id.UserID != ""
}

// WithIdentity stores a resolved identity for IdentityFromContext.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func bearerToken(r *http.Request) string {
	// Support both "Bearer <token>" and "<token>" formats
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

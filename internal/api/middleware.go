/**
 * @description
 * This file contains custom middleware for the HTTP router. The session middleware resolves
 * the caller from the session cookie or a bearer token and stores the identity in the request
 * context; RequireSession rejects requests that carry none.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/loyalty/rewards-service/internal/domain"
)

// IdentityContextKey is a custom type for the context key to avoid collisions.
type IdentityContextKey string

const identityKey IdentityContextKey = "identity"

// TokenVerifier validates a session token.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// SessionMiddleware attaches the caller's identity to the request context when the request
// carries a valid session. Requests without one pass through anonymously.
func SessionMiddleware(verifier TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, &id)))
		})
	}
}

// RequireSession responds 401 to anonymous requests.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetIdentity(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: domain.UserMessage(domain.ErrUnauthenticated)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIdentity retrieves the caller's identity from the request context.
func GetIdentity(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

func sessionToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

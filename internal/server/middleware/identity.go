package middleware

import (
	"context"
	"net/http"
	"strings"
)

// userIDKey is the context key carrying the authenticated user's ID.
type userIDKey struct{}

// Identity returns middleware that extracts the caller's user ID from the
// X-User-ID header and stores it in the request context. Identity issuance
// and verification happen at the edge gateway, which forwards the resolved
// user ID with each request; this middleware only carries it inward.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey{}, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the user ID stored in ctx, or "" when the request carried
// no identity.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

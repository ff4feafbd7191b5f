package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth gates the API behind a static key, presented either as a Bearer token
// or in the X-API-Key header. An empty configured key disables the gate,
// which is the development default; user-level identity is carried
// separately by Identity.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		want := []byte(apiKey)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := requestKey(r)
			if got == "" {
				denyJSON(w, http.StatusUnauthorized, "missing API key")
				return
			}
			// The key is a shared secret; compare in constant time.
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				denyJSON(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestKey pulls the presented key from Authorization: Bearer first, then
// X-API-Key.
func requestKey(r *http.Request) string {
	if scheme, rest, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// denyJSON writes a JSON error body for middleware-level rejections, which
// fire before any handler's content negotiation.
func denyJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

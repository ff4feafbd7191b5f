package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// RateLimit caps each client IP at limit requests per window, sharing the
// sliding window across nodes when the limiter is redis-backed. A limiter
// failure fails open: bidders locked out by an infrastructure hiccup would be
// worse than a brief window of unthrottled traffic.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:api:" + extractClientIP(r)

			allowed, err := limiter.Allow(context.Background(), key, limit, window)
			if err == nil && !allowed {
				w.Header().Set("Retry-After", "1")
				denyJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP resolves the client behind the usual proxy headers, falling
// back to the socket address.
func extractClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

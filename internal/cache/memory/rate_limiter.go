package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// RateLimiter implements domain.RateLimiter with per-key sliding windows of
// request timestamps. Semantics match the redis implementation.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates an empty in-process RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a request for key fits inside the window, counting it
// when it does.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-window)

	kept := rl.windows[key][:0]
	for _, t := range rl.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		rl.windows[key] = kept
		return false, nil
	}

	rl.windows[key] = append(kept, now)
	return true, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)

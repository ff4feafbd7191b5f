// Package memory implements the domain cache interfaces with mutex-guarded
// in-process maps. It is the single-node deployment backend: semantics match
// the redis package (leased locks, TTL'd counter-offers, pub/sub fanout) but
// state lives in the process and is rebuilt from scratch on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// lockEntry records the current holder of a key and when its lease runs out.
type lockEntry struct {
	token     string
	expiresAt time.Time
}

// LockManager implements domain.LockManager over a plain map. A lease that
// has expired is treated as released, so a crashed holder stalls its key for
// at most one lease, mirroring the redis SETNX+TTL behavior.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]lockEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewLockManager creates an empty in-process LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire attempts to obtain the lock for key with the given lease. It
// returns domain.ErrLockHeld if another holder's lease is still running.
// The returned unlock function is safe to call multiple times and releases
// the lock only if this acquisition still holds it.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if e, ok := lm.locks[key]; ok && now.Before(e.expiresAt) {
		return nil, domain.ErrLockHeld
	}

	token := uuid.New().String()
	lm.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		if e, ok := lm.locks[key]; ok && e.token == token {
			delete(lm.locks, key)
		}
	}

	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)

package memory

import (
	"context"
	"sync"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// LiveAuctionCache implements domain.LiveAuctionCache with in-process maps.
type LiveAuctionCache struct {
	mu      sync.RWMutex
	status  map[string]domain.AuctionStatus
	highest map[string]domain.HighestBid

	// locks is cleared on Cleanup alongside the other per-auction state, so
	// a deleted auction never leaves a dangling lease behind. It is only set
	// when the cache and lock manager are wired together via SetLockManager.
	locks *LockManager
}

// NewLiveAuctionCache creates an empty in-process LiveAuctionCache.
func NewLiveAuctionCache() *LiveAuctionCache {
	return &LiveAuctionCache{
		status:  make(map[string]domain.AuctionStatus),
		highest: make(map[string]domain.HighestBid),
	}
}

// SetLockManager wires the lock manager whose per-auction leases Cleanup
// should clear.
func (lc *LiveAuctionCache) SetLockManager(lm *LockManager) {
	lc.locks = lm
}

// SetStatus writes the fast-path status for an auction.
func (lc *LiveAuctionCache) SetStatus(_ context.Context, auctionID string, status domain.AuctionStatus) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.status[auctionID] = status
	return nil
}

// GetStatus reads the fast-path status, or domain.ErrNotFound when no live
// state exists.
func (lc *LiveAuctionCache) GetStatus(_ context.Context, auctionID string) (domain.AuctionStatus, error) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	s, ok := lc.status[auctionID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s, nil
}

// SetHighest overwrites the highest-bid snapshot for an auction.
func (lc *LiveAuctionCache) SetHighest(_ context.Context, auctionID string, hb domain.HighestBid) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.highest[auctionID] = hb
	return nil
}

// GetHighest reads the highest-bid snapshot, or domain.ErrNotFound when none
// exists.
func (lc *LiveAuctionCache) GetHighest(_ context.Context, auctionID string) (domain.HighestBid, error) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	hb, ok := lc.highest[auctionID]
	if !ok {
		return domain.HighestBid{}, domain.ErrNotFound
	}
	return hb, nil
}

// Cleanup deletes the status, snapshot, and any lingering bid lock for an
// auction.
func (lc *LiveAuctionCache) Cleanup(_ context.Context, auctionID string) error {
	lc.mu.Lock()
	delete(lc.status, auctionID)
	delete(lc.highest, auctionID)
	lc.mu.Unlock()

	if lc.locks != nil {
		lc.locks.mu.Lock()
		delete(lc.locks.locks, auctionID)
		lc.locks.mu.Unlock()
	}
	return nil
}

// Compile-time interface check.
var _ domain.LiveAuctionCache = (*LiveAuctionCache)(nil)

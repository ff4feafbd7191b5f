package domain

import (
	"context"
	"time"
)

// LockManager provides the per-auction bid lock: a mutual-exclusion lease
// acquired with a short TTL so a crashed holder can never stall bidding for
// longer than the lease. Acquire fails fast with ErrLockHeld instead of
// queueing; retry policy belongs to the caller.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// LiveAuctionCache holds the ephemeral per-auction state that exists only
// while an auction is live or awaiting the seller's decision: the fast-path
// status and the highest-bid snapshot. All of it is deleted by Cleanup when
// the auction's live resources are released.
type LiveAuctionCache interface {
	SetStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	// GetStatus returns ErrNotFound when no live state exists for the auction.
	GetStatus(ctx context.Context, auctionID string) (AuctionStatus, error)

	// SetHighest overwrites the highest-bid snapshot. Callers must hold the
	// auction's bid lock; the cache itself does no cross-key coordination.
	SetHighest(ctx context.Context, auctionID string, hb HighestBid) error
	// GetHighest returns ErrNotFound when no snapshot exists.
	GetHighest(ctx context.Context, auctionID string) (HighestBid, error)

	// Cleanup deletes the status, snapshot, and any lingering bid lock.
	Cleanup(ctx context.Context, auctionID string) error
}

// CounterOfferCache stores at most one counter-offer per auction with a TTL
// matching its response window. Get enforces lazy expiry: an offer read past
// its ExpiresAt is deleted and reported as ErrNotFound.
type CounterOfferCache interface {
	Put(ctx context.Context, offer CounterOffer) error
	Get(ctx context.Context, auctionID string) (CounterOffer, error)
	Delete(ctx context.Context, auctionID string) error
}

// RateLimiter provides per-key request rate limiting. Allow reports whether
// a request under key fits inside the window and counts it when it does.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus carries realtime event envelopes between nodes. In a single-node
// deployment the hub consumes its own published envelopes through a local
// loop; multi-node deployments back this with redis pub/sub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Package auction implements the core of the live auction system: the bid
// placement engine, the lifecycle state machine, the counter-offer
// negotiation sub-protocol, and the periodic sweeper that drives time-based
// transitions.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// Placer serializes bid submissions for an auction against the highest-bid
// snapshot. The per-auction bid lock is the only serialization point: within
// one auction, accepted bids are totally ordered by lock acquisition; across
// auctions nothing is ordered.
type Placer struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	users    domain.UserStore
	locks    domain.LockManager
	live     domain.LiveAuctionCache
	rt       domain.Broadcaster
	lease    time.Duration
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewPlacer creates a Placer. lease is the bid lock's TTL; it bounds how
// long a crashed bid handler can stall the auction.
func NewPlacer(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	users domain.UserStore,
	locks domain.LockManager,
	live domain.LiveAuctionCache,
	rt domain.Broadcaster,
	lease time.Duration,
	logger *slog.Logger,
) *Placer {
	return &Placer{
		auctions: auctions,
		bids:     bids,
		users:    users,
		locks:    locks,
		live:     live,
		rt:       rt,
		lease:    lease,
		logger:   logger.With(slog.String("component", "placer")),
		now:      time.Now,
	}
}

// PlaceBid validates and records a bid on a live auction.
//
// The protocol: acquire the auction's bid lock with a short lease, failing
// fast with ErrBidLocked when contended (no internal retry — retry policy
// belongs to the caller, so contention can never silently reorder bids).
// Under the lock the auction must be live, the clock must be inside the
// bidding window, and the amount must reach max(startingPrice, current
// highest) + increment. On success, the bid is durably recorded before the
// snapshot is overwritten and before anything is broadcast, so a viewer who
// reads after seeing an event sees consistent state. The lock is released
// exactly once on every exit path; broadcasts happen after release so they
// never extend the critical section.
func (p *Placer) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Bid{}, domain.ErrInvalidAmount
	}

	a, err := p.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return domain.Bid{}, err
	}
	if a.SellerID == bidderID {
		return domain.Bid{}, domain.ErrSelfBid
	}

	bidder, err := p.users.GetByID(ctx, bidderID)
	if err != nil {
		return domain.Bid{}, err
	}

	unlock, err := p.locks.Acquire(ctx, auctionID, p.lease)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Bid{}, domain.ErrBidLocked
		}
		return domain.Bid{}, err
	}
	// The unlock closure is idempotent; the deferred call guarantees release
	// on every failure path below, while the explicit call before the
	// broadcasts keeps them off the critical section.
	defer unlock()

	status, err := p.live.GetStatus(ctx, auctionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.Bid{}, domain.ErrAuctionNotLive
	case err != nil:
		return domain.Bid{}, fmt.Errorf("read live status: %w", err)
	case status != domain.StatusLive:
		return domain.Bid{}, domain.ErrAuctionNotLive
	}

	// Re-check the window under the lock so a bid racing the lifecycle
	// sweeper can never land outside [startAt, endAt] even if the cached
	// status is momentarily stale.
	now := p.now()
	if !a.InWindow(now) {
		return domain.Bid{}, domain.ErrOutOfWindow
	}

	prev, err := p.live.GetHighest(ctx, auctionID)
	hadPrev := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Bid{}, err
	}

	base := a.StartingPrice
	if hadPrev && prev.Amount.GreaterThan(base) {
		base = prev.Amount
	}
	minimum := base.Add(a.BidIncrement)
	if amount.LessThan(minimum) {
		return domain.Bid{}, fmt.Errorf("%w: minimum is %s", domain.ErrBidTooLow, minimum)
	}

	bid := domain.Bid{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := p.bids.Create(ctx, bid); err != nil {
		return domain.Bid{}, fmt.Errorf("record bid: %w", err)
	}

	hb := domain.HighestBid{
		Amount:      amount,
		BidID:       bid.ID,
		BidderID:    bidderID,
		DisplayName: bidder.DisplayName,
		At:          now,
	}
	if err := p.live.SetHighest(ctx, auctionID, hb); err != nil {
		// The bid is durable but the snapshot write failed; surface the
		// error so the caller retries rather than leave viewers behind.
		return domain.Bid{}, fmt.Errorf("update highest bid: %w", err)
	}

	unlock()

	p.rt.BroadcastToAuction(auctionID, domain.EventBidNew, domain.Payload{
		"bid": bid,
		"auction": map[string]any{
			"id":             auctionID,
			"currentHighest": hb,
		},
	})

	if hadPrev && prev.HasBidder() && prev.BidderID != bidderID {
		p.rt.NotifyUser(prev.BidderID, domain.EventBidOutbid, domain.Payload{
			"auctionId": auctionID,
			"outbidBy": map[string]any{
				"userId":      bidderID,
				"displayName": bidder.DisplayName,
				"amount":      amount,
			},
			"previousAmount": prev.Amount,
		})
		p.rt.BroadcastToAuction(auctionID, domain.EventBidOutbid, domain.Payload{
			"newLeadingBid": amount,
		})
	}

	p.logger.InfoContext(ctx, "bid accepted",
		slog.String("auction_id", auctionID),
		slog.String("bidder_id", bidderID),
		slog.String("amount", amount.String()),
	)

	return bid, nil
}

// DeleteBid removes a bidder's own bid from a live auction. The current
// highest bid cannot be deleted; it anchors the minimum for everyone else.
func (p *Placer) DeleteBid(ctx context.Context, auctionID, bidID, bidderID string) error {
	bid, err := p.bids.GetByID(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.AuctionID != auctionID {
		return domain.ErrNotFound
	}
	if bid.BidderID != bidderID {
		return domain.ErrUnauthorized
	}

	a, err := p.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != domain.StatusLive {
		return domain.ErrAuctionNotLive
	}

	if hb, err := p.live.GetHighest(ctx, auctionID); err == nil && hb.BidID == bidID {
		return domain.ErrHighestBid
	}

	return p.bids.Delete(ctx, bidID)
}

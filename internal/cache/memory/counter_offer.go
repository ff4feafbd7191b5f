package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// CounterOfferCache implements domain.CounterOfferCache with an in-process
// map. There is no background sweep: expiry is enforced lazily on Get, the
// same way the redis backend treats a record read past its ExpiresAt.
type CounterOfferCache struct {
	mu     sync.RWMutex
	offers map[string]domain.CounterOffer

	// now is swappable for tests.
	now func() time.Time
}

// NewCounterOfferCache creates an empty in-process CounterOfferCache.
func NewCounterOfferCache() *CounterOfferCache {
	return &CounterOfferCache{
		offers: make(map[string]domain.CounterOffer),
		now:    time.Now,
	}
}

// Put stores the counter-offer, replacing any prior offer for the same
// auction.
func (cc *CounterOfferCache) Put(_ context.Context, offer domain.CounterOffer) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.offers[offer.AuctionID] = offer
	return nil
}

// Get returns the auction's counter-offer, or domain.ErrNotFound when none
// exists. A pending offer found past its ExpiresAt is deleted and reported
// as not found.
func (cc *CounterOfferCache) Get(_ context.Context, auctionID string) (domain.CounterOffer, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	offer, ok := cc.offers[auctionID]
	if !ok {
		return domain.CounterOffer{}, domain.ErrNotFound
	}
	if offer.Status == domain.CounterOfferPending && offer.Expired(cc.now()) {
		delete(cc.offers, auctionID)
		return domain.CounterOffer{}, domain.ErrNotFound
	}
	return offer, nil
}

// Delete removes the auction's counter-offer, if any.
func (cc *CounterOfferCache) Delete(_ context.Context, auctionID string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.offers, auctionID)
	return nil
}

// Compile-time interface check.
var _ domain.CounterOfferCache = (*CounterOfferCache)(nil)

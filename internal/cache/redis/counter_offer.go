package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// CounterOfferCache implements domain.CounterOfferCache with one JSON blob
// per auction at "counter-offer:{auctionId}". The key TTL matches the
// offer's response window, and Get additionally enforces lazy expiry against
// the record's own ExpiresAt so a clock-skewed Redis TTL can never let a
// late response through.
type CounterOfferCache struct {
	rdb *redis.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewCounterOfferCache creates a CounterOfferCache backed by the given
// Client.
func NewCounterOfferCache(c *Client) *CounterOfferCache {
	return &CounterOfferCache{
		rdb: c.Underlying(),
		now: time.Now,
	}
}

func counterOfferKey(auctionID string) string {
	return "counter-offer:" + auctionID
}

// Put stores the counter-offer, replacing any prior offer for the same
// auction. The key expires when the offer's response window closes.
func (cc *CounterOfferCache) Put(ctx context.Context, offer domain.CounterOffer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("redis: marshal counter-offer %s: %w", offer.AuctionID, err)
	}

	ttl := time.Until(offer.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := cc.rdb.Set(ctx, counterOfferKey(offer.AuctionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set counter-offer %s: %w", offer.AuctionID, err)
	}
	return nil
}

// Get returns the auction's counter-offer, or domain.ErrNotFound when none
// exists. A pending offer found past its ExpiresAt is deleted and reported
// as not found.
func (cc *CounterOfferCache) Get(ctx context.Context, auctionID string) (domain.CounterOffer, error) {
	data, err := cc.rdb.Get(ctx, counterOfferKey(auctionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CounterOffer{}, domain.ErrNotFound
		}
		return domain.CounterOffer{}, fmt.Errorf("redis: get counter-offer %s: %w", auctionID, err)
	}

	var offer domain.CounterOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		return domain.CounterOffer{}, fmt.Errorf("redis: unmarshal counter-offer %s: %w", auctionID, err)
	}

	if offer.Status == domain.CounterOfferPending && offer.Expired(cc.now()) {
		_ = cc.rdb.Del(ctx, counterOfferKey(auctionID)).Err()
		return domain.CounterOffer{}, domain.ErrNotFound
	}

	return offer, nil
}

// Delete removes the auction's counter-offer, if any.
func (cc *CounterOfferCache) Delete(ctx context.Context, auctionID string) error {
	if err := cc.rdb.Del(ctx, counterOfferKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete counter-offer %s: %w", auctionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CounterOfferCache = (*CounterOfferCache)(nil)

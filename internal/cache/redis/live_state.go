package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// LiveAuctionCache implements domain.LiveAuctionCache using plain Redis
// string keys. The highest-bid snapshot is stored as a JSON blob at
// "auction:{id}:highest" and the fast-path status at "auction:{id}:status";
// the serialization format is an implementation detail of this package.
type LiveAuctionCache struct {
	rdb *redis.Client
}

// NewLiveAuctionCache creates a LiveAuctionCache backed by the given Client.
func NewLiveAuctionCache(c *Client) *LiveAuctionCache {
	return &LiveAuctionCache{rdb: c.Underlying()}
}

func statusKey(auctionID string) string {
	return "auction:" + auctionID + ":status"
}

func highestKey(auctionID string) string {
	return "auction:" + auctionID + ":highest"
}

// SetStatus writes the fast-path status for an auction.
func (lc *LiveAuctionCache) SetStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	if err := lc.rdb.Set(ctx, statusKey(auctionID), string(status), 0).Err(); err != nil {
		return fmt.Errorf("redis: set status %s: %w", auctionID, err)
	}
	return nil
}

// GetStatus reads the fast-path status. It returns domain.ErrNotFound when
// no live state exists for the auction.
func (lc *LiveAuctionCache) GetStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, error) {
	val, err := lc.rdb.Get(ctx, statusKey(auctionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get status %s: %w", auctionID, err)
	}
	return domain.AuctionStatus(val), nil
}

// SetHighest overwrites the highest-bid snapshot for an auction. The caller
// must hold the auction's bid lock.
func (lc *LiveAuctionCache) SetHighest(ctx context.Context, auctionID string, hb domain.HighestBid) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("redis: marshal highest bid %s: %w", auctionID, err)
	}
	if err := lc.rdb.Set(ctx, highestKey(auctionID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set highest bid %s: %w", auctionID, err)
	}
	return nil
}

// GetHighest reads the highest-bid snapshot. It returns domain.ErrNotFound
// when no snapshot exists.
func (lc *LiveAuctionCache) GetHighest(ctx context.Context, auctionID string) (domain.HighestBid, error) {
	data, err := lc.rdb.Get(ctx, highestKey(auctionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.HighestBid{}, domain.ErrNotFound
		}
		return domain.HighestBid{}, fmt.Errorf("redis: get highest bid %s: %w", auctionID, err)
	}

	var hb domain.HighestBid
	if err := json.Unmarshal(data, &hb); err != nil {
		return domain.HighestBid{}, fmt.Errorf("redis: unmarshal highest bid %s: %w", auctionID, err)
	}
	return hb, nil
}

// Cleanup deletes the status, snapshot, and any lingering bid lock for an
// auction in one round trip.
func (lc *LiveAuctionCache) Cleanup(ctx context.Context, auctionID string) error {
	keys := []string{
		statusKey(auctionID),
		highestKey(auctionID),
		lockKey(auctionID),
	}
	if err := lc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: cleanup auction %s: %w", auctionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LiveAuctionCache = (*LiveAuctionCache)(nil)

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jrmarot/bidhouse/internal/domain"
)

func TestLockManagerMutualExclusion(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "a1", time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "a1", time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	// A different key is independent.
	unlock2, err := lm.Acquire(ctx, "a2", time.Second)
	require.NoError(t, err)
	unlock2()

	unlock()
	unlock3, err := lm.Acquire(ctx, "a1", time.Second)
	require.NoError(t, err)
	unlock3()
}

func TestLockManagerLeaseExpiry(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	lm.now = func() time.Time { return base }

	staleUnlock, err := lm.Acquire(ctx, "a1", 2*time.Second)
	require.NoError(t, err)

	// Holder crashes; after the lease runs out the key is free again.
	lm.now = func() time.Time { return base.Add(3 * time.Second) }
	unlock, err := lm.Acquire(ctx, "a1", 2*time.Second)
	require.NoError(t, err)

	// The stale holder's unlock must not release the new holder's lock.
	staleUnlock()
	_, err = lm.Acquire(ctx, "a1", 2*time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	unlock()
}

func TestLockManagerUnlockIdempotent(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "a1", time.Second)
	require.NoError(t, err)
	unlock()
	unlock()

	next, err := lm.Acquire(ctx, "a1", time.Second)
	require.NoError(t, err)

	// The first holder's second unlock already ran; the new lock holds.
	_, err = lm.Acquire(ctx, "a1", time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	next()
}

func TestLiveAuctionCacheCleanupClearsLock(t *testing.T) {
	lm := NewLockManager()
	lc := NewLiveAuctionCache()
	lc.SetLockManager(lm)
	ctx := context.Background()

	require.NoError(t, lc.SetStatus(ctx, "a1", domain.StatusLive))
	require.NoError(t, lc.SetHighest(ctx, "a1", domain.HighestBid{Amount: decimal.NewFromInt(100)}))
	_, err := lm.Acquire(ctx, "a1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lc.Cleanup(ctx, "a1"))

	_, err = lc.GetStatus(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = lc.GetHighest(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The lingering lease went with the rest of the live state.
	unlock, err := lm.Acquire(ctx, "a1", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestCounterOfferCacheLazyExpiry(t *testing.T) {
	cc := NewCounterOfferCache()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cc.now = func() time.Time { return base }

	offer := domain.CounterOffer{
		AuctionID: "a1",
		SellerID:  "s1",
		BuyerID:   "b1",
		Amount:    decimal.NewFromInt(5000),
		Status:    domain.CounterOfferPending,
		CreatedAt: base,
		ExpiresAt: base.Add(24 * time.Hour),
	}
	require.NoError(t, cc.Put(ctx, offer))

	got, err := cc.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "b1", got.BuyerID)

	// Just inside the window.
	cc.now = func() time.Time { return base.Add(24 * time.Hour) }
	_, err = cc.Get(ctx, "a1")
	require.NoError(t, err)

	// Past the window the offer is discarded on read.
	cc.now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	_, err = cc.Get(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// And it stays gone even if the clock moves back.
	cc.now = func() time.Time { return base }
	_, err = cc.Get(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCounterOfferCacheAnsweredOffersDoNotExpire(t *testing.T) {
	cc := NewCounterOfferCache()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cc.now = func() time.Time { return base.Add(48 * time.Hour) }

	// An accepted offer past its window is still readable; expiry only
	// reaps offers nobody answered.
	offer := domain.CounterOffer{
		AuctionID: "a1",
		Status:    domain.CounterOfferAccepted,
		ExpiresAt: base.Add(24 * time.Hour),
	}
	require.NoError(t, cc.Put(ctx, offer))

	got, err := cc.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.CounterOfferAccepted, got.Status)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "ip:1", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := rl.Allow(ctx, "ip:1", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// Other keys are unaffected.
	ok, err = rl.Allow(ctx, "ip:2", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Once the earliest hits age out of the window, requests pass again.
	now = base.Add(61 * time.Second)
	ok, err = rl.Allow(ctx, "ip:1", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignalBusFanout(t *testing.T) {
	sb := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := sb.Subscribe(ctx, "events")
	require.NoError(t, err)
	ch2, err := sb.Subscribe(ctx, "events")
	require.NoError(t, err)
	other, err := sb.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, sb.Publish(ctx, "events", []byte("hello")))

	for _, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case msg := <-ch:
			require.Equal(t, []byte("hello"), msg)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}

	select {
	case <-other:
		t.Fatal("channel isolation violated")
	default:
	}
}

func TestSignalBusUnsubscribeOnCancel(t *testing.T) {
	sb := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := sb.Subscribe(ctx, "events")
	require.NoError(t, err)

	cancel()

	// The channel closes once the subscription is torn down.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing afterwards reaches nobody and does not panic.
	require.NoError(t, sb.Publish(context.Background(), "events", []byte("late")))
}

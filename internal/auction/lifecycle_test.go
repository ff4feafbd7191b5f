package auction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jrmarot/bidhouse/internal/cache/memory"
	"github.com/jrmarot/bidhouse/internal/domain"
)

type lifecycleFixture struct {
	auctions *fakeAuctionStore
	bids     *fakeBidStore
	users    *fakeUserStore
	locks    *memory.LockManager
	live     *memory.LiveAuctionCache
	offers   *fakeOfferCache
	rt       *fakeBroadcaster
	hooks    *fakeHooks
	life     *Lifecycle
	placer   *Placer
	now      time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := &lifecycleFixture{
		auctions: newFakeAuctionStore(),
		bids:     newFakeBidStore(),
		users: newFakeUserStore(
			domain.User{ID: "seller-1", DisplayName: "Sonia Seller"},
			domain.User{ID: "alice", DisplayName: "Alice"},
			domain.User{ID: "bob", DisplayName: "Bob"},
		),
		locks:  memory.NewLockManager(),
		live:   memory.NewLiveAuctionCache(),
		offers: newFakeOfferCache(),
		rt:     &fakeBroadcaster{},
		hooks:  &fakeHooks{},
		now:    now,
	}
	f.offers.now = func() time.Time { return f.now }
	f.life = NewLifecycle(f.auctions, f.bids, f.users, f.live, f.offers, f.rt, f.hooks, discardLogger())
	f.life.now = func() time.Time { return f.now }
	f.placer = NewPlacer(f.auctions, f.bids, f.users, f.locks, f.live, f.rt, 2*time.Second, discardLogger())
	f.placer.now = func() time.Time { return f.now }
	return f
}

func (f *lifecycleFixture) seedScheduled(t *testing.T, id string, startingPrice int64) domain.Auction {
	t.Helper()
	a := domain.Auction{
		ID:            id,
		SellerID:      "seller-1",
		Title:         "Vintage synthesizer",
		StartingPrice: decimal.NewFromInt(startingPrice),
		BidIncrement:  decimal.NewFromInt(100),
		StartAt:       f.now.Add(-time.Minute),
		EndAt:         f.now.Add(time.Hour),
		Status:        domain.StatusScheduled,
	}
	require.NoError(t, f.auctions.Create(context.Background(), a))
	return a
}

// runToEnded takes an auction through scheduled -> live -> ended with the
// given bids placed while live.
func (f *lifecycleFixture) runToEnded(t *testing.T, id string, bids map[string]int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.life.Initialize(ctx, id))
	for bidder, amount := range bids {
		_, err := f.placer.PlaceBid(ctx, id, bidder, decimal.NewFromInt(amount))
		require.NoError(t, err)
	}
	_, err := f.life.End(ctx, id)
	require.NoError(t, err)
}

func TestLifecycleInitialize(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	ctx := context.Background()

	require.NoError(t, f.life.Initialize(ctx, "a1"))

	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusLive, a.Status)

	status, err := f.live.GetStatus(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusLive, status)

	// Positive starting price seeds the snapshot with no bidder attached.
	hb, err := f.live.GetHighest(ctx, "a1")
	require.NoError(t, err)
	require.False(t, hb.HasBidder())
	require.True(t, hb.Amount.Equal(decimal.NewFromInt(900)))

	_, ok := f.rt.find(domain.EventAuctionStarted)
	require.True(t, ok)

	// Only scheduled auctions can go live.
	err = f.life.Initialize(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrBadTransition)
}

func TestLifecycleInitializeZeroStartingPrice(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 0)
	ctx := context.Background()

	require.NoError(t, f.life.Initialize(ctx, "a1"))

	_, err := f.live.GetHighest(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycleEnd(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	ctx := context.Background()

	require.NoError(t, f.life.Initialize(ctx, "a1"))
	_, err := f.placer.PlaceBid(ctx, "a1", "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	final, err := f.life.End(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, final)
	require.Equal(t, "alice", final.BidderID)

	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, a.Status)

	e, ok := f.rt.find(domain.EventAuctionEnded)
	require.True(t, ok)
	require.Equal(t, "a1", e.auctionID)
	require.NotNil(t, e.payload["finalBid"])

	// Live state is released once the auction has ended.
	_, err = f.live.GetStatus(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.live.GetHighest(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycleEndBidless(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 0)
	ctx := context.Background()

	require.NoError(t, f.life.Initialize(ctx, "a1"))
	final, err := f.life.End(ctx, "a1")
	require.NoError(t, err)
	require.Nil(t, final)

	e, ok := f.rt.find(domain.EventAuctionEnded)
	require.True(t, ok)
	_, hasFinal := e.payload["finalBid"]
	require.False(t, hasFinal)
}

func TestLifecycleAcceptAfterTimedEnd(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	f.runToEnded(t, "a1", map[string]int64{"alice": 1000})
	ctx := context.Background()

	// The live snapshot is gone by now; the winner must come from the
	// durable bid record.
	s, err := f.life.Accept(ctx, "a1", "seller-1")
	require.NoError(t, err)
	require.Equal(t, "alice", s.BuyerID)
	require.Equal(t, "Alice", s.BuyerName)
	require.True(t, s.SaleAmount.Equal(decimal.NewFromInt(1000)))
	require.False(t, s.ViaCounter)

	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, a.Status)

	e, ok := f.rt.find(domain.EventSellerDecision)
	require.True(t, ok)
	require.Equal(t, "ACCEPTED", e.payload["decision"])

	won, ok := f.rt.find(domain.EventAuctionWon)
	require.True(t, ok)
	require.Equal(t, "alice", won.userID)

	require.Len(t, f.hooks.saleClosed, 1)
	require.Equal(t, "a1", f.hooks.saleClosed[0].AuctionID)
}

func TestLifecycleAcceptGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	f.runToEnded(t, "a1", map[string]int64{"alice": 1000})
	f.seedScheduled(t, "a2", 0)
	f.runToEnded(t, "a2", nil)
	ctx := context.Background()

	_, err := f.life.Accept(ctx, "a1", "bob")
	require.ErrorIs(t, err, domain.ErrNotSeller)

	// Bidless auction has nothing to accept.
	_, err = f.life.Accept(ctx, "a2", "seller-1")
	require.ErrorIs(t, err, domain.ErrNoBids)

	// Closed is terminal.
	_, err = f.life.Accept(ctx, "a1", "seller-1")
	require.NoError(t, err)
	_, err = f.life.Accept(ctx, "a1", "seller-1")
	require.ErrorIs(t, err, domain.ErrBadTransition)
}

func TestLifecycleAcceptWhileLiveEndsInline(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	ctx := context.Background()
	require.NoError(t, f.life.Initialize(ctx, "a1"))
	_, err := f.placer.PlaceBid(ctx, "a1", "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	// Accepting mid-auction stops bidding and closes the sale in one call.
	s, err := f.life.Accept(ctx, "a1", "seller-1")
	require.NoError(t, err)
	require.Equal(t, "alice", s.BuyerID)
	require.True(t, s.SaleAmount.Equal(decimal.NewFromInt(1000)))

	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, a.Status)

	_, ok := f.rt.find(domain.EventAuctionEnded)
	require.True(t, ok)
	won, ok := f.rt.find(domain.EventAuctionWon)
	require.True(t, ok)
	require.Equal(t, "alice", won.userID)

	// Live state is gone; late bids bounce.
	_, err = f.placer.PlaceBid(ctx, "a1", "bob", decimal.NewFromInt(1100))
	require.ErrorIs(t, err, domain.ErrAuctionNotLive)
}

func TestLifecycleAcceptWhileScheduled(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)

	_, err := f.life.Accept(context.Background(), "a1", "seller-1")
	require.ErrorIs(t, err, domain.ErrBadTransition)
}

func TestLifecycleReject(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	f.runToEnded(t, "a1", map[string]int64{"alice": 1000})
	ctx := context.Background()

	require.NoError(t, f.life.Reject(ctx, "a1", "seller-1"))

	// Rejecting leaves the auction ended; no sale happened.
	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, a.Status)

	e, ok := f.rt.find(domain.EventSellerDecision)
	require.True(t, ok)
	require.Equal(t, "REJECTED", e.payload["decision"])

	rej, ok := f.rt.find(domain.EventBidRejected)
	require.True(t, ok)
	require.Equal(t, "alice", rej.userID)

	require.Len(t, f.hooks.bidRejected, 1)
	require.Empty(t, f.hooks.saleClosed)
}

func TestLifecycleRejectBidless(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 900)
	f.runToEnded(t, "a1", nil)
	ctx := context.Background()

	require.NoError(t, f.life.Reject(ctx, "a1", "seller-1"))

	// The decision still goes out to the room; there is no bidder to notify.
	e, ok := f.rt.find(domain.EventSellerDecision)
	require.True(t, ok)
	require.Equal(t, "REJECTED", e.payload["decision"])
	_, ok = f.rt.find(domain.EventBidRejected)
	require.False(t, ok)
	require.Empty(t, f.hooks.bidRejected)

	a, err := f.auctions.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, a.Status)
}

func TestLifecycleTick(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	// Due to start now.
	f.seedScheduled(t, "starts", 100)

	// Already live and past its end time.
	ending := domain.Auction{
		ID:            "ends",
		SellerID:      "seller-1",
		Title:         "Ends now",
		StartingPrice: decimal.NewFromInt(100),
		BidIncrement:  decimal.NewFromInt(10),
		StartAt:       f.now.Add(-2 * time.Hour),
		EndAt:         f.now.Add(-time.Minute),
		Status:        domain.StatusLive,
	}
	require.NoError(t, f.auctions.Create(ctx, ending))
	require.NoError(t, f.live.SetStatus(ctx, "ends", domain.StatusLive))

	// Not due yet.
	future := domain.Auction{
		ID:       "future",
		SellerID: "seller-1",
		StartAt:  f.now.Add(time.Hour),
		EndAt:    f.now.Add(2 * time.Hour),
		Status:   domain.StatusScheduled,
	}
	require.NoError(t, f.auctions.Create(ctx, future))

	started, ended, err := f.life.Tick(ctx, f.now)
	require.NoError(t, err)
	require.Equal(t, 1, started)
	require.Equal(t, 1, ended)

	a, err := f.auctions.GetByID(ctx, "starts")
	require.NoError(t, err)
	require.Equal(t, domain.StatusLive, a.Status)

	a, err = f.auctions.GetByID(ctx, "ends")
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, a.Status)

	a, err = f.auctions.GetByID(ctx, "future")
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, a.Status)
}

// flakyAuctionStore fails UpdateStatus for one auction ID, leaving the rest
// of the store behavior intact.
type flakyAuctionStore struct {
	*fakeAuctionStore
	failID string
}

func (s *flakyAuctionStore) UpdateStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	if id == s.failID {
		return errors.New("status write failed")
	}
	return s.fakeAuctionStore.UpdateStatus(ctx, id, status)
}

func TestLifecycleTickIsolatesFailures(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	flaky := &flakyAuctionStore{fakeAuctionStore: f.auctions, failID: "broken"}
	life := NewLifecycle(flaky, f.bids, f.users, f.live, f.offers, f.rt, f.hooks, discardLogger())
	life.now = func() time.Time { return f.now }

	f.seedScheduled(t, "ok-1", 100)
	f.seedScheduled(t, "broken", 100)
	f.seedScheduled(t, "ok-2", 100)

	// The failing auction is logged and skipped; the others still go live.
	started, ended, err := life.Tick(ctx, f.now)
	require.NoError(t, err)
	require.Equal(t, 2, started)
	require.Zero(t, ended)

	a, err := f.auctions.GetByID(ctx, "ok-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusLive, a.Status)
	a, err = f.auctions.GetByID(ctx, "broken")
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, a.Status)
}

func TestLifecycleOperatorNotifications(t *testing.T) {
	f := newLifecycleFixture(t)
	ops := &fakeOpsNotifier{}
	f.life.SetOperatorNotifier(ops)
	ctx := context.Background()

	f.seedScheduled(t, "a1", 900)
	require.NoError(t, f.life.Initialize(ctx, "a1"))
	require.Eventually(t, func() bool { return ops.seen("auction_started") },
		time.Second, 10*time.Millisecond)

	_, err := f.life.End(ctx, "a1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ops.seen("auction_ended") },
		time.Second, 10*time.Millisecond)
}

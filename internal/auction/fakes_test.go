package auction

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAuctionStore struct {
	mu       sync.Mutex
	auctions map[string]domain.Auction
}

func newFakeAuctionStore() *fakeAuctionStore {
	return &fakeAuctionStore{auctions: make(map[string]domain.Auction)}
}

func (s *fakeAuctionStore) Create(_ context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.auctions[a.ID] = a
	return nil
}

func (s *fakeAuctionStore) GetByID(_ context.Context, id string) (domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeAuctionStore) UpdateStatus(_ context.Context, id string, status domain.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	s.auctions[id] = a
	return nil
}

func (s *fakeAuctionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.auctions, id)
	return nil
}

func (s *fakeAuctionStore) ListByStatus(_ context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Auction
	for _, a := range s.auctions {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else {
		out = nil
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *fakeAuctionStore) CountByStatus(_ context.Context, status domain.AuctionStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.auctions {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *fakeAuctionStore) DueToStart(_ context.Context, now time.Time) ([]domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.StatusScheduled && !a.StartAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAuctionStore) DueToEnd(_ context.Context, now time.Time) ([]domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.StatusLive && a.EndAt.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAuctionStore) NextScheduled(_ context.Context, now time.Time) (domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next domain.Auction
	found := false
	for _, a := range s.auctions {
		if a.Status != domain.StatusScheduled || a.StartAt.Before(now) {
			continue
		}
		if !found || a.StartAt.Before(next.StartAt) {
			next = a
			found = true
		}
	}
	if !found {
		return domain.Auction{}, domain.ErrNotFound
	}
	return next, nil
}

func (s *fakeAuctionStore) EndingBetween(_ context.Context, from, to time.Time, limit int) ([]domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.StatusLive && !a.EndAt.Before(from) && !a.EndAt.After(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndAt.Before(out[j].EndAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeBidStore struct {
	mu   sync.Mutex
	bids map[string]domain.Bid
}

func newFakeBidStore() *fakeBidStore {
	return &fakeBidStore{bids: make(map[string]domain.Bid)}
}

func (s *fakeBidStore) Create(_ context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[b.ID] = b
	return nil
}

func (s *fakeBidStore) GetByID(_ context.Context, id string) (domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *fakeBidStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.bids, id)
	return nil
}

func (s *fakeBidStore) DeleteByAuction(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.bids {
		if b.AuctionID == auctionID {
			delete(s.bids, id)
		}
	}
	return nil
}

func (s *fakeBidStore) TopByAuction(_ context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bid
	for _, b := range s.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserStore(users ...domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

// rtEvent is one recorded hub delivery. userID is empty for room broadcasts.
type rtEvent struct {
	userID    string
	auctionID string
	event     string
	payload   domain.Payload
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []rtEvent
}

func (f *fakeBroadcaster) BroadcastToAuction(auctionID, event string, payload domain.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, rtEvent{auctionID: auctionID, event: event, payload: payload})
}

func (f *fakeBroadcaster) NotifyUser(userID, event string, payload domain.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, rtEvent{userID: userID, event: event, payload: payload})
}

// find returns the first recorded event with the given name, or false.
func (f *fakeBroadcaster) find(event string) (rtEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.event == event {
			return e, true
		}
	}
	return rtEvent{}, false
}

func (f *fakeBroadcaster) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// fakeOfferCache mirrors the cache backends' lazy-expiry semantics with a
// clock the test can move.
type fakeOfferCache struct {
	mu     sync.Mutex
	offers map[string]domain.CounterOffer
	now    func() time.Time
}

func newFakeOfferCache() *fakeOfferCache {
	return &fakeOfferCache{
		offers: make(map[string]domain.CounterOffer),
		now:    time.Now,
	}
}

func (c *fakeOfferCache) Put(_ context.Context, offer domain.CounterOffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers[offer.AuctionID] = offer
	return nil
}

func (c *fakeOfferCache) Get(_ context.Context, auctionID string) (domain.CounterOffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offer, ok := c.offers[auctionID]
	if !ok {
		return domain.CounterOffer{}, domain.ErrNotFound
	}
	if offer.Status == domain.CounterOfferPending && offer.Expired(c.now()) {
		delete(c.offers, auctionID)
		return domain.CounterOffer{}, domain.ErrNotFound
	}
	return offer, nil
}

func (c *fakeOfferCache) Delete(_ context.Context, auctionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.offers, auctionID)
	return nil
}

type fakeHooks struct {
	mu              sync.Mutex
	saleClosed      []domain.Settlement
	bidRejected     []decimal.Decimal
	counterOffered  []domain.CounterOffer
	counterRejected []domain.CounterOffer
}

func (h *fakeHooks) SaleClosed(_ domain.Auction, _ domain.User, s domain.Settlement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saleClosed = append(h.saleClosed, s)
}

func (h *fakeHooks) BidRejected(_ domain.Auction, _ domain.User, amount decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bidRejected = append(h.bidRejected, amount)
}

func (h *fakeHooks) CounterOffered(_ domain.Auction, _ domain.User, offer domain.CounterOffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counterOffered = append(h.counterOffered, offer)
}

func (h *fakeHooks) CounterRejected(_ domain.Auction, _ domain.User, offer domain.CounterOffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counterRejected = append(h.counterRejected, offer)
}

// fakeOpsNotifier records operator notification events. Safe for the
// fire-and-forget delivery goroutines.
type fakeOpsNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeOpsNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOpsNotifier) seen(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

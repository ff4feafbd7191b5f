package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// topBidsLimit caps the bid history returned with auction detail.
const topBidsLimit = 10

// CreateAuctionInput carries the caller-supplied fields for a new auction.
type CreateAuctionInput struct {
	SellerID      string
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	BidIncrement  decimal.Decimal
	StartAt       time.Time
	EndAt         time.Time
}

// AuctionDetail is an auction joined with its live state and recent bids.
type AuctionDetail struct {
	Auction     domain.Auction       `json:"auction"`
	Seller      domain.User          `json:"seller"`
	TopBids     []domain.Bid         `json:"topBids"`
	LiveStatus  string               `json:"liveStatus,omitempty"`
	Highest     *domain.HighestBid   `json:"currentHighestBid,omitempty"`
	Counter     *domain.CounterOffer `json:"counterOffer,omitempty"`
	ViewerCount int                  `json:"viewerCount"`
}

// ScheduleStatus summarizes the lifecycle schedule for operators: per-status
// counts, the next auction to open, and auctions ending within the hour.
type ScheduleStatus struct {
	Timestamp  time.Time        `json:"timestamp"`
	Counts     map[string]int64 `json:"counts"`
	Next       *domain.Auction  `json:"nextAuction,omitempty"`
	EndingSoon []domain.Auction `json:"endingSoon"`
}

// ViewerCounter reports how many realtime connections are watching an
// auction. The ws hub implements it.
type ViewerCounter interface {
	ViewerCount(auctionID string) int
}

// Catalog serves auction CRUD and read-side queries: creation, listing,
// detail assembly, and seller-initiated deletion. Lifecycle transitions live
// elsewhere; the catalog never changes an auction's status.
type Catalog struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	users    domain.UserStore
	live     domain.LiveAuctionCache
	offers   domain.CounterOfferCache
	viewers  ViewerCounter
	logger   *slog.Logger

	now func() time.Time
}

// NewCatalog creates a Catalog. viewers may be nil when no realtime hub runs
// in this process.
func NewCatalog(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	users domain.UserStore,
	live domain.LiveAuctionCache,
	offers domain.CounterOfferCache,
	viewers ViewerCounter,
	logger *slog.Logger,
) *Catalog {
	return &Catalog{
		auctions: auctions,
		bids:     bids,
		users:    users,
		live:     live,
		offers:   offers,
		viewers:  viewers,
		logger:   logger.With(slog.String("component", "catalog")),
		now:      time.Now,
	}
}

// Create validates and persists a new scheduled auction.
func (c *Catalog) Create(ctx context.Context, in CreateAuctionInput) (domain.Auction, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Auction{}, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if in.StartingPrice.IsNegative() {
		return domain.Auction{}, fmt.Errorf("%w: starting price cannot be negative", domain.ErrInvalidAmount)
	}
	if in.BidIncrement.LessThanOrEqual(decimal.Zero) {
		return domain.Auction{}, fmt.Errorf("%w: bid increment must be positive", domain.ErrInvalidAmount)
	}
	if !in.EndAt.After(in.StartAt) {
		return domain.Auction{}, fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidInput)
	}
	if in.EndAt.Before(c.now()) {
		return domain.Auction{}, fmt.Errorf("%w: end time is in the past", domain.ErrInvalidInput)
	}
	if _, err := c.users.GetByID(ctx, in.SellerID); err != nil {
		return domain.Auction{}, fmt.Errorf("resolve seller: %w", err)
	}

	now := c.now()
	a := domain.Auction{
		ID:            uuid.New().String(),
		SellerID:      in.SellerID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		StartingPrice: in.StartingPrice,
		BidIncrement:  in.BidIncrement,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		Status:        domain.StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.auctions.Create(ctx, a); err != nil {
		return domain.Auction{}, fmt.Errorf("create auction: %w", err)
	}

	c.logger.InfoContext(ctx, "auction created",
		slog.String("auction_id", a.ID),
		slog.String("seller_id", a.SellerID),
		slog.Time("start_at", a.StartAt),
	)
	return a, nil
}

// List returns auctions in the given status, newest first.
func (c *Catalog) List(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, int64, error) {
	if !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	items, err := c.auctions.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := c.auctions.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get assembles the auction detail view: the durable record, the seller, the
// top bids, and whatever live state exists. Cache read failures degrade the
// view instead of failing it.
func (c *Catalog) Get(ctx context.Context, auctionID string) (AuctionDetail, error) {
	a, err := c.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, err
	}
	seller, err := c.users.GetByID(ctx, a.SellerID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("resolve seller: %w", err)
	}
	bids, err := c.bids.TopByAuction(ctx, auctionID, topBidsLimit)
	if err != nil {
		return AuctionDetail{}, err
	}

	d := AuctionDetail{
		Auction: a,
		Seller:  seller,
		TopBids: bids,
	}
	if status, err := c.live.GetStatus(ctx, auctionID); err == nil {
		d.LiveStatus = string(status)
	}
	if hb, err := c.live.GetHighest(ctx, auctionID); err == nil {
		d.Highest = &hb
	}
	if offer, err := c.offers.Get(ctx, auctionID); err == nil {
		d.Counter = &offer
	}
	if c.viewers != nil {
		d.ViewerCount = c.viewers.ViewerCount(auctionID)
	}
	return d, nil
}

// Delete removes an auction, its bids, and any live state. Only the seller
// may delete.
func (c *Catalog) Delete(ctx context.Context, auctionID, sellerID string) error {
	a, err := c.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.SellerID != sellerID {
		return domain.ErrNotSeller
	}

	if err := c.live.Cleanup(ctx, auctionID); err != nil {
		c.logger.WarnContext(ctx, "live state cleanup failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}
	if err := c.offers.Delete(ctx, auctionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WarnContext(ctx, "counter-offer cleanup failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}
	if err := c.bids.DeleteByAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("delete bids: %w", err)
	}
	if err := c.auctions.Delete(ctx, auctionID); err != nil {
		return fmt.Errorf("delete auction: %w", err)
	}

	c.logger.InfoContext(ctx, "auction deleted", slog.String("auction_id", auctionID))
	return nil
}

// Schedule reports the operator view of the lifecycle schedule.
func (c *Catalog) Schedule(ctx context.Context) (ScheduleStatus, error) {
	now := c.now()
	counts := make(map[string]int64, 4)
	for _, status := range []domain.AuctionStatus{
		domain.StatusScheduled, domain.StatusLive, domain.StatusEnded, domain.StatusClosed,
	} {
		n, err := c.auctions.CountByStatus(ctx, status)
		if err != nil {
			return ScheduleStatus{}, err
		}
		counts[string(status)] = n
	}

	s := ScheduleStatus{
		Timestamp:  now,
		Counts:     counts,
		EndingSoon: []domain.Auction{},
	}
	if next, err := c.auctions.NextScheduled(ctx, now); err == nil {
		s.Next = &next
	} else if !errors.Is(err, domain.ErrNotFound) {
		return ScheduleStatus{}, err
	}

	ending, err := c.auctions.EndingBetween(ctx, now, now.Add(time.Hour), 5)
	if err != nil {
		return ScheduleStatus{}, err
	}
	s.EndingSoon = ending
	return s, nil
}

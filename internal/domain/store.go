package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AuctionStore persists auction records. The core mutates only the status
// column; everything else is written at creation time.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	GetByID(ctx context.Context, id string) (Auction, error)
	UpdateStatus(ctx context.Context, id string, status AuctionStatus) error
	Delete(ctx context.Context, id string) error
	// ListByStatus returns auctions in the given status, newest first.
	ListByStatus(ctx context.Context, status AuctionStatus, opts ListOpts) ([]Auction, error)
	CountByStatus(ctx context.Context, status AuctionStatus) (int64, error)
	// DueToStart returns scheduled auctions whose start time has passed.
	DueToStart(ctx context.Context, now time.Time) ([]Auction, error)
	// DueToEnd returns live auctions whose end time has passed.
	DueToEnd(ctx context.Context, now time.Time) ([]Auction, error)
	// NextScheduled returns the scheduled auction that starts soonest after now.
	NextScheduled(ctx context.Context, now time.Time) (Auction, error)
	// EndingBetween returns live auctions ending inside [from, to], soonest first.
	EndingBetween(ctx context.Context, from, to time.Time, limit int) ([]Auction, error)
}

// BidStore persists bids. Bids are append-only except for deletion by their
// own bidder.
type BidStore interface {
	Create(ctx context.Context, b Bid) error
	GetByID(ctx context.Context, id string) (Bid, error)
	Delete(ctx context.Context, id string) error
	DeleteByAuction(ctx context.Context, auctionID string) error
	// TopByAuction returns the highest bids for an auction, descending by amount.
	TopByAuction(ctx context.Context, auctionID string, limit int) ([]Bid, error)
}

// UserStore reads user identity and display names. User records are owned by
// an external identity service; the core never writes them.
type UserStore interface {
	GetByID(ctx context.Context, id string) (User, error)
}

// SettlementArchiver records a settlement after an auction closes with a
// sale. Archival is fire-and-forget: failures are logged and never roll back
// the close.
type SettlementArchiver interface {
	Archive(ctx context.Context, s Settlement) error
}

// Package domain defines the core types, interfaces, and sentinel errors for
// the live auction system. It has no dependencies on any infrastructure
// package; concrete stores, caches, and the realtime hub implement the
// interfaces declared here.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus enumerates the lifecycle states of an auction.
type AuctionStatus string

const (
	// StatusScheduled means the auction exists but bidding has not opened.
	StatusScheduled AuctionStatus = "scheduled"
	// StatusLive means the auction is accepting bids.
	StatusLive AuctionStatus = "live"
	// StatusEnded means the bidding window has closed; the seller may still
	// accept, reject, or counter the highest bid.
	StatusEnded AuctionStatus = "ended"
	// StatusClosed means the auction finished with a sale.
	StatusClosed AuctionStatus = "closed"
	// StatusCounterOffer means the seller has countered and the buyer's
	// response is pending.
	StatusCounterOffer AuctionStatus = "counter-offer"
)

// Valid reports whether s is one of the known auction statuses.
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusEnded, StatusClosed, StatusCounterOffer:
		return true
	}
	return false
}

// Auction is a time-boxed sale of a single item via ascending bids.
type Auction struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"sellerId"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	BidIncrement  decimal.Decimal `json:"bidIncrement"`
	StartAt       time.Time       `json:"startAt"`
	EndAt         time.Time       `json:"endAt"`
	Status        AuctionStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// InWindow reports whether now falls inside the auction's bidding window.
func (a Auction) InWindow(now time.Time) bool {
	return !now.Before(a.StartAt) && !now.After(a.EndAt)
}

// Bid is a single bid on an auction. Bids are immutable once recorded; the
// only mutation the core performs is deletion by the bid's own bidder while
// the auction is live and the bid is not the current highest.
type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// User is the minimal identity projection the core needs: an ID and a
// display name for event payloads. Identity issuance lives elsewhere.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HighestBid is the ephemeral snapshot of the current leading bid for a live
// (or just-ended) auction. It is overwritten atomically under the bid lock on
// every accepted bid and deleted when the auction's live resources are
// cleaned up. When an auction opens with a positive starting price the
// snapshot is seeded from it, with no bid or bidder attached.
type HighestBid struct {
	Amount      decimal.Decimal `json:"amount"`
	BidID       string          `json:"bidId,omitempty"`
	BidderID    string          `json:"bidderId,omitempty"`
	DisplayName string          `json:"displayName"`
	At          time.Time       `json:"at"`
}

// HasBidder reports whether the snapshot belongs to an actual bidder, as
// opposed to the seeded starting price.
func (h HighestBid) HasBidder() bool {
	return h.BidderID != ""
}

// CounterOfferStatus enumerates the states of a counter-offer.
type CounterOfferStatus string

const (
	CounterOfferPending  CounterOfferStatus = "pending"
	CounterOfferAccepted CounterOfferStatus = "accepted"
	CounterOfferRejected CounterOfferStatus = "rejected"
)

// CounterOffer is a seller-proposed alternative price on an ended auction,
// awaiting the designated buyer's response within a fixed window. At most one
// counter-offer is active per auction; creating a new one supersedes any
// prior instance.
type CounterOffer struct {
	AuctionID   string             `json:"auctionId"`
	SellerID    string             `json:"sellerId"`
	BuyerID     string             `json:"buyerId"`
	OriginalBid decimal.Decimal    `json:"originalBid"`
	Amount      decimal.Decimal    `json:"counterOfferAmount"`
	Status      CounterOfferStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	RespondedAt *time.Time         `json:"respondedAt,omitempty"`
}

// Expired reports whether the offer's response window has passed at now.
func (c CounterOffer) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Settlement is the record captured when an auction closes with a sale. The
// final highest-bid snapshot is folded in before the live state is cleaned
// up, so reporting never races the cleanup.
type Settlement struct {
	AuctionID  string          `json:"auctionId"`
	Title      string          `json:"title"`
	SellerID   string          `json:"sellerId"`
	BuyerID    string          `json:"buyerId"`
	BuyerName  string          `json:"buyerName"`
	SaleAmount decimal.Decimal `json:"saleAmount"`
	FinalBid   *HighestBid     `json:"finalBid,omitempty"`
	ViaCounter bool            `json:"viaCounterOffer"`
	ClosedAt   time.Time       `json:"closedAt"`
}

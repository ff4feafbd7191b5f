package notify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// Mailer delivers transactional email to buyers and sellers. Implementations
// are called fire-and-forget after a state transition; failures are logged
// and never affect the transition that triggered them.
type Mailer interface {
	// SendBidAccepted tells the buyer their bid won, with the invoice attached
	// when one was generated.
	SendBidAccepted(ctx context.Context, buyer domain.User, a domain.Auction, amount decimal.Decimal, invoice []byte) error
	// SendBidAcceptedSeller confirms the sale to the seller.
	SendBidAcceptedSeller(ctx context.Context, seller domain.User, a domain.Auction, amount decimal.Decimal, buyerName string, invoice []byte) error
	// SendBidRejected tells the highest bidder the seller declined.
	SendBidRejected(ctx context.Context, buyer domain.User, a domain.Auction, amount decimal.Decimal) error
	// SendCounterOffer tells the buyer the seller countered their bid.
	SendCounterOffer(ctx context.Context, buyer domain.User, a domain.Auction, originalBid, counter decimal.Decimal) error
	// SendCounterOfferRejected confirms the buyer's rejection back to them.
	SendCounterOfferRejected(ctx context.Context, buyer domain.User, a domain.Auction, counter decimal.Decimal) error
}

// LogMailer writes each email to the structured log instead of delivering it.
// It is the default when no mail transport is configured, keeping the rest of
// the pipeline (invoices, archival, operator alerts) fully exercised in
// development.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendBidAccepted(ctx context.Context, buyer domain.User, a domain.Auction, amount decimal.Decimal, invoice []byte) error {
	m.log(ctx, "bid accepted", buyer, a, amount, len(invoice) > 0)
	return nil
}

func (m *LogMailer) SendBidAcceptedSeller(ctx context.Context, seller domain.User, a domain.Auction, amount decimal.Decimal, buyerName string, invoice []byte) error {
	m.log(ctx, "sale confirmed", seller, a, amount, len(invoice) > 0)
	return nil
}

func (m *LogMailer) SendBidRejected(ctx context.Context, buyer domain.User, a domain.Auction, amount decimal.Decimal) error {
	m.log(ctx, "bid rejected", buyer, a, amount, false)
	return nil
}

func (m *LogMailer) SendCounterOffer(ctx context.Context, buyer domain.User, a domain.Auction, originalBid, counter decimal.Decimal) error {
	m.log(ctx, "counter-offer received", buyer, a, counter, false)
	return nil
}

func (m *LogMailer) SendCounterOfferRejected(ctx context.Context, buyer domain.User, a domain.Auction, counter decimal.Decimal) error {
	m.log(ctx, "counter-offer rejection confirmed", buyer, a, counter, false)
	return nil
}

func (m *LogMailer) log(ctx context.Context, kind string, to domain.User, a domain.Auction, amount decimal.Decimal, attached bool) {
	m.logger.InfoContext(ctx, "email (log only)",
		slog.String("kind", kind),
		slog.String("to", to.Email),
		slog.String("auction_id", a.ID),
		slog.String("amount", amount.String()),
		slog.Bool("invoice_attached", attached),
	)
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/auction"
	"github.com/jrmarot/bidhouse/internal/domain"
)

// hookTimeout bounds each fire-and-forget side effect so a stuck mail
// transport or archive endpoint cannot leak goroutines forever.
const hookTimeout = 30 * time.Second

// Hooks implements the post-transition side effects of seller and buyer
// decisions: invoices, transactional email, settlement archival, and operator
// alerts. Every method returns immediately and does its work in a
// background goroutine; failures are logged, never propagated.
type Hooks struct {
	users    domain.UserStore
	mailer   Mailer
	invoices InvoiceGenerator
	archiver domain.SettlementArchiver
	notifier *Notifier
	logger   *slog.Logger
}

// NewHooks creates a Hooks. archiver and notifier may be nil; the
// corresponding side effects are skipped.
func NewHooks(
	users domain.UserStore,
	mailer Mailer,
	invoices InvoiceGenerator,
	archiver domain.SettlementArchiver,
	notifier *Notifier,
	logger *slog.Logger,
) *Hooks {
	return &Hooks{
		users:    users,
		mailer:   mailer,
		invoices: invoices,
		archiver: archiver,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "hooks")),
	}
}

var _ auction.Hooks = (*Hooks)(nil)

// SaleClosed runs after an auction closes with a sale, by direct accept or by
// an accepted counter-offer: generate the invoice, mail both parties, archive
// the settlement, and alert operators.
func (h *Hooks) SaleClosed(a domain.Auction, buyer domain.User, s domain.Settlement) {
	h.run("sale closed", func(ctx context.Context) error {
		invoice, err := h.invoices.Generate(ctx, s)
		if err != nil {
			h.logger.ErrorContext(ctx, "invoice generation failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
			// Emails still go out, just without the attachment.
			invoice = nil
		}

		if err := h.mailer.SendBidAccepted(ctx, buyer, a, s.SaleAmount, invoice); err != nil {
			h.logger.ErrorContext(ctx, "buyer email failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
		if seller, err := h.users.GetByID(ctx, a.SellerID); err == nil {
			if err := h.mailer.SendBidAcceptedSeller(ctx, seller, a, s.SaleAmount, buyer.DisplayName, invoice); err != nil {
				h.logger.ErrorContext(ctx, "seller email failed",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if h.archiver != nil {
			if err := h.archiver.Archive(ctx, s); err != nil {
				h.logger.ErrorContext(ctx, "settlement archive failed",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if h.notifier != nil {
			title := fmt.Sprintf("Auction closed: %s", a.Title)
			msg := fmt.Sprintf("Sold to %s for %s", buyer.DisplayName, s.SaleAmount)
			if err := h.notifier.Notify(ctx, "sale", title, msg); err != nil {
				h.logger.WarnContext(ctx, "operator alert failed", slog.String("error", err.Error()))
			}
		}
		return nil
	})
}

// BidRejected runs after the seller declines the highest bid.
func (h *Hooks) BidRejected(a domain.Auction, buyer domain.User, amount decimal.Decimal) {
	h.run("bid rejected", func(ctx context.Context) error {
		return h.mailer.SendBidRejected(ctx, buyer, a, amount)
	})
}

// CounterOffered runs after the seller makes a counter-offer.
func (h *Hooks) CounterOffered(a domain.Auction, buyer domain.User, offer domain.CounterOffer) {
	h.run("counter-offer made", func(ctx context.Context) error {
		return h.mailer.SendCounterOffer(ctx, buyer, a, offer.OriginalBid, offer.Amount)
	})
}

// CounterRejected runs after the buyer rejects a counter-offer.
func (h *Hooks) CounterRejected(a domain.Auction, buyer domain.User, offer domain.CounterOffer) {
	h.run("counter-offer rejected", func(ctx context.Context) error {
		return h.mailer.SendCounterOfferRejected(ctx, buyer, a, offer.Amount)
	})
}

func (h *Hooks) run(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			h.logger.ErrorContext(ctx, "hook failed",
				slog.String("hook", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

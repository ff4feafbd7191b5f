package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// Hooks receives post-transition side effects: invoices, emails, settlement
// archival. Implementations run fire-and-forget; a hook failure must never
// roll back or block the transition that triggered it, so the methods return
// nothing.
type Hooks interface {
	SaleClosed(a domain.Auction, buyer domain.User, s domain.Settlement)
	BidRejected(a domain.Auction, buyer domain.User, amount decimal.Decimal)
	CounterOffered(a domain.Auction, buyer domain.User, offer domain.CounterOffer)
	CounterRejected(a domain.Auction, buyer domain.User, offer domain.CounterOffer)
}

// NopHooks is a Hooks that does nothing.
type NopHooks struct{}

func (NopHooks) SaleClosed(domain.Auction, domain.User, domain.Settlement)        {}
func (NopHooks) BidRejected(domain.Auction, domain.User, decimal.Decimal)         {}
func (NopHooks) CounterOffered(domain.Auction, domain.User, domain.CounterOffer)  {}
func (NopHooks) CounterRejected(domain.Auction, domain.User, domain.CounterOffer) {}

var _ Hooks = NopHooks{}

// OperatorNotifier pushes operational events to out-of-band operator channels
// such as Telegram or Discord. Implementations filter by event name.
type OperatorNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type nopOperatorNotifier struct{}

func (nopOperatorNotifier) Notify(context.Context, string, string, string) error { return nil }

// opsNotifyTimeout bounds a single operator notification delivery.
const opsNotifyTimeout = 10 * time.Second

// Lifecycle drives auctions through their state machine:
//
//	scheduled -> live -> ended -> closed        (seller accepts)
//	                           -> counter-offer (seller counters)
//	                           -> ended         (seller rejects; terminal)
//
// Time-based transitions (scheduled->live, live->ended) are applied by Tick;
// seller decisions by Accept, Reject, and the Negotiation type.
type Lifecycle struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	users    domain.UserStore
	live     domain.LiveAuctionCache
	offers   domain.CounterOfferCache
	rt       domain.Broadcaster
	hooks    Hooks
	ops      OperatorNotifier
	logger   *slog.Logger

	now func() time.Time
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	users domain.UserStore,
	live domain.LiveAuctionCache,
	offers domain.CounterOfferCache,
	rt domain.Broadcaster,
	hooks Hooks,
	logger *slog.Logger,
) *Lifecycle {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Lifecycle{
		auctions: auctions,
		bids:     bids,
		users:    users,
		live:     live,
		offers:   offers,
		rt:       rt,
		hooks:    hooks,
		ops:      nopOperatorNotifier{},
		logger:   logger.With(slog.String("component", "lifecycle")),
		now:      time.Now,
	}
}

// SetOperatorNotifier routes auction_started/auction_ended events to an
// operator channel. Without it those events are only logged.
func (l *Lifecycle) SetOperatorNotifier(ops OperatorNotifier) {
	if ops != nil {
		l.ops = ops
	}
}

// notifyOps delivers an operator notification off the request path. Delivery
// failures are logged and never surface to the caller.
func (l *Lifecycle) notifyOps(event, title, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opsNotifyTimeout)
		defer cancel()
		if err := l.ops.Notify(ctx, event, title, message); err != nil {
			l.logger.ErrorContext(ctx, "operator notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Initialize transitions a scheduled auction to live: durable status first,
// then the fast-path status key, then the highest-bid snapshot seeded from a
// positive starting price, then the auction:started broadcast.
func (l *Lifecycle) Initialize(ctx context.Context, auctionID string) error {
	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != domain.StatusScheduled {
		return fmt.Errorf("%w: cannot start auction in status %q", domain.ErrBadTransition, a.Status)
	}

	if err := l.auctions.UpdateStatus(ctx, auctionID, domain.StatusLive); err != nil {
		return fmt.Errorf("mark live: %w", err)
	}
	if err := l.live.SetStatus(ctx, auctionID, domain.StatusLive); err != nil {
		return fmt.Errorf("cache live status: %w", err)
	}

	if a.StartingPrice.GreaterThan(decimal.Zero) {
		seed := domain.HighestBid{
			Amount:      a.StartingPrice,
			DisplayName: "Starting Price",
			At:          l.now(),
		}
		if err := l.live.SetHighest(ctx, auctionID, seed); err != nil {
			return fmt.Errorf("seed highest bid: %w", err)
		}
	}

	l.rt.BroadcastToAuction(auctionID, domain.EventAuctionStarted, domain.Payload{
		"auction": a,
		"endsAt":  a.EndAt,
	})

	l.notifyOps("auction_started", "Auction live",
		fmt.Sprintf("%q is live until %s", a.Title, a.EndAt.Format(time.RFC3339)))

	l.logger.InfoContext(ctx, "auction live",
		slog.String("auction_id", auctionID),
		slog.Time("end_at", a.EndAt),
	)
	return nil
}

// End transitions a live auction to ended. The final highest-bid snapshot is
// captured before the live resources are cleaned up, broadcast in the
// auction:ended event, and returned so callers can settle on it. An auction
// that ends bidless simply has no snapshot.
func (l *Lifecycle) End(ctx context.Context, auctionID string) (*domain.HighestBid, error) {
	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.StatusLive {
		return nil, fmt.Errorf("%w: cannot end auction in status %q", domain.ErrBadTransition, a.Status)
	}

	final, err := l.captureFinal(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if err := l.auctions.UpdateStatus(ctx, auctionID, domain.StatusEnded); err != nil {
		return nil, fmt.Errorf("mark ended: %w", err)
	}

	payload := domain.Payload{"auctionId": auctionID}
	if final != nil {
		payload["finalBid"] = final
	}
	l.rt.BroadcastToAuction(auctionID, domain.EventAuctionEnded, payload)

	if err := l.live.Cleanup(ctx, auctionID); err != nil {
		l.logger.WarnContext(ctx, "live state cleanup failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}

	msg := fmt.Sprintf("%q ended with no bids", a.Title)
	if final != nil && final.HasBidder() {
		msg = fmt.Sprintf("%q ended at %s", a.Title, final.Amount.String())
	}
	l.notifyOps("auction_ended", "Auction ended", msg)

	l.logger.InfoContext(ctx, "auction ended", slog.String("auction_id", auctionID))
	return final, nil
}

// Accept closes an auction at the highest bid. Only the seller may accept,
// and only when a real bid exists. Accepting a live auction ends it inline
// first, so bidding stops the moment the seller commits to the sale.
func (l *Lifecycle) Accept(ctx context.Context, auctionID, sellerID string) (domain.Settlement, error) {
	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if a.SellerID != sellerID {
		return domain.Settlement{}, domain.ErrNotSeller
	}
	switch a.Status {
	case domain.StatusEnded:
	case domain.StatusLive:
		if _, err := l.End(ctx, auctionID); err != nil {
			return domain.Settlement{}, fmt.Errorf("end before accept: %w", err)
		}
	default:
		return domain.Settlement{}, fmt.Errorf("%w: cannot accept in status %q", domain.ErrBadTransition, a.Status)
	}

	final, buyer, err := l.winner(ctx, auctionID)
	if err != nil {
		return domain.Settlement{}, err
	}

	if err := l.auctions.UpdateStatus(ctx, auctionID, domain.StatusClosed); err != nil {
		return domain.Settlement{}, fmt.Errorf("mark closed: %w", err)
	}

	s := domain.Settlement{
		AuctionID:  auctionID,
		Title:      a.Title,
		SellerID:   a.SellerID,
		BuyerID:    buyer.ID,
		BuyerName:  buyer.DisplayName,
		SaleAmount: final.Amount,
		FinalBid:   &final,
		ClosedAt:   l.now(),
	}

	l.rt.BroadcastToAuction(auctionID, domain.EventSellerDecision, domain.Payload{
		"decision": "ACCEPTED",
		"winner":   buyer.DisplayName,
		"amount":   final.Amount,
	})
	l.rt.NotifyUser(buyer.ID, domain.EventAuctionWon, domain.Payload{
		"auctionId": auctionID,
		"title":     a.Title,
		"amount":    final.Amount,
	})

	l.hooks.SaleClosed(a, buyer, s)
	l.cleanupClosed(ctx, auctionID)

	l.logger.InfoContext(ctx, "auction closed",
		slog.String("auction_id", auctionID),
		slog.String("buyer_id", buyer.ID),
		slog.String("amount", final.Amount.String()),
	)
	return s, nil
}

// Reject declines the outcome of an ended auction, bidless or not. It stays
// ended, which is terminal unless the seller follows up with a counter-offer.
func (l *Lifecycle) Reject(ctx context.Context, auctionID, sellerID string) error {
	a, err := l.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.SellerID != sellerID {
		return domain.ErrNotSeller
	}
	if a.Status != domain.StatusEnded {
		return fmt.Errorf("%w: cannot reject in status %q", domain.ErrBadTransition, a.Status)
	}

	// A bidless auction can still be rejected; there is just nobody to tell.
	final, buyer, err := l.winner(ctx, auctionID)
	hasBidder := err == nil
	if err != nil && !errors.Is(err, domain.ErrNoBids) {
		return err
	}

	l.rt.BroadcastToAuction(auctionID, domain.EventSellerDecision, domain.Payload{
		"decision": "REJECTED",
	})
	if hasBidder {
		l.rt.NotifyUser(buyer.ID, domain.EventBidRejected, domain.Payload{
			"auctionId": auctionID,
			"title":     a.Title,
			"amount":    final.Amount,
		})
		l.hooks.BidRejected(a, buyer, final.Amount)
	}
	l.cleanupClosed(ctx, auctionID)

	l.logger.InfoContext(ctx, "highest bid rejected",
		slog.String("auction_id", auctionID),
		slog.String("buyer_id", buyer.ID),
	)
	return nil
}

// Tick applies every due time-based transition at now. Items are isolated:
// one failing auction is logged and skipped, never aborting the pass. It
// returns how many auctions went live and how many ended.
func (l *Lifecycle) Tick(ctx context.Context, now time.Time) (started, ended int, err error) {
	due, err := l.auctions.DueToStart(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("query due to start: %w", err)
	}
	for _, a := range due {
		if err := l.Initialize(ctx, a.ID); err != nil {
			l.logger.ErrorContext(ctx, "start transition failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		started++
	}

	expiring, err := l.auctions.DueToEnd(ctx, now)
	if err != nil {
		return started, 0, fmt.Errorf("query due to end: %w", err)
	}
	for _, a := range expiring {
		if _, err := l.End(ctx, a.ID); err != nil {
			l.logger.ErrorContext(ctx, "end transition failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		ended++
	}
	return started, ended, nil
}

// winner resolves the auction's winning bid and the user behind it. The live
// snapshot is preferred while it exists; after the ephemeral state has been
// cleaned up the durable bid record is the source of truth. A snapshot seeded
// only from the starting price means there is nothing to decide on.
func (l *Lifecycle) winner(ctx context.Context, auctionID string) (domain.HighestBid, domain.User, error) {
	final, err := l.live.GetHighest(ctx, auctionID)
	switch {
	case err == nil:
		if !final.HasBidder() {
			return domain.HighestBid{}, domain.User{}, domain.ErrNoBids
		}
	case errors.Is(err, domain.ErrNotFound):
		top, err := l.bids.TopByAuction(ctx, auctionID, 1)
		if err != nil {
			return domain.HighestBid{}, domain.User{}, fmt.Errorf("resolve winning bid: %w", err)
		}
		if len(top) == 0 {
			return domain.HighestBid{}, domain.User{}, domain.ErrNoBids
		}
		final = domain.HighestBid{
			Amount:   top[0].Amount,
			BidID:    top[0].ID,
			BidderID: top[0].BidderID,
			At:       top[0].CreatedAt,
		}
	default:
		return domain.HighestBid{}, domain.User{}, err
	}

	buyer, err := l.users.GetByID(ctx, final.BidderID)
	if err != nil {
		return domain.HighestBid{}, domain.User{}, fmt.Errorf("resolve winner: %w", err)
	}
	if final.DisplayName == "" {
		final.DisplayName = buyer.DisplayName
	}
	return final, buyer, nil
}

// captureFinal reads the highest-bid snapshot, treating absence as a bidless
// auction rather than an error.
func (l *Lifecycle) captureFinal(ctx context.Context, auctionID string) (*domain.HighestBid, error) {
	hb, err := l.live.GetHighest(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("capture final bid: %w", err)
	}
	return &hb, nil
}

// cleanupClosed releases whatever live resources and counter-offer state
// remain after a seller decision. Best effort; the decision already stuck.
func (l *Lifecycle) cleanupClosed(ctx context.Context, auctionID string) {
	if err := l.live.Cleanup(ctx, auctionID); err != nil {
		l.logger.WarnContext(ctx, "live state cleanup failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}
	if err := l.offers.Delete(ctx, auctionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		l.logger.WarnContext(ctx, "counter-offer cleanup failed",
			slog.String("auction_id", auctionID),
			slog.String("error", err.Error()),
		)
	}
}

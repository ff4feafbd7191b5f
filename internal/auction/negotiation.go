package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// Negotiation runs the post-close counter-offer sub-protocol: the seller of
// an ended auction proposes an alternative price to the highest bidder, who
// has a fixed window to accept or reject. At most one counter-offer is active
// per auction; making a new one supersedes the previous. Expiry is enforced
// lazily: an expired offer is discovered and discarded on the next read, and
// the auction stays ended as if the buyer had never answered.
type Negotiation struct {
	auctions domain.AuctionStore
	users    domain.UserStore
	offers   domain.CounterOfferCache
	life     *Lifecycle
	rt       domain.Broadcaster
	hooks    Hooks
	window   time.Duration
	logger   *slog.Logger

	now func() time.Time
}

// NewNegotiation creates a Negotiation. window is how long the buyer has to
// respond to a counter-offer.
func NewNegotiation(
	auctions domain.AuctionStore,
	users domain.UserStore,
	offers domain.CounterOfferCache,
	life *Lifecycle,
	rt domain.Broadcaster,
	hooks Hooks,
	window time.Duration,
	logger *slog.Logger,
) *Negotiation {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Negotiation{
		auctions: auctions,
		users:    users,
		offers:   offers,
		life:     life,
		rt:       rt,
		hooks:    hooks,
		window:   window,
		logger:   logger.With(slog.String("component", "negotiation")),
		now:      time.Now,
	}
}

// Make proposes a counter-offer on an ended auction. Only the seller may
// counter, only from ended, and only when a real highest bid exists to
// counter against.
func (n *Negotiation) Make(ctx context.Context, auctionID, sellerID string, amount decimal.Decimal) (domain.CounterOffer, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.CounterOffer{}, domain.ErrInvalidAmount
	}

	a, err := n.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return domain.CounterOffer{}, err
	}
	if a.SellerID != sellerID {
		return domain.CounterOffer{}, domain.ErrNotSeller
	}
	if a.Status != domain.StatusEnded {
		return domain.CounterOffer{}, fmt.Errorf("%w: cannot counter in status %q", domain.ErrBadTransition, a.Status)
	}

	final, buyer, err := n.life.winner(ctx, auctionID)
	if err != nil {
		return domain.CounterOffer{}, err
	}

	now := n.now()
	offer := domain.CounterOffer{
		AuctionID:   auctionID,
		SellerID:    sellerID,
		BuyerID:     buyer.ID,
		OriginalBid: final.Amount,
		Amount:      amount,
		Status:      domain.CounterOfferPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(n.window),
	}
	if err := n.offers.Put(ctx, offer); err != nil {
		return domain.CounterOffer{}, fmt.Errorf("store counter-offer: %w", err)
	}
	if err := n.auctions.UpdateStatus(ctx, auctionID, domain.StatusCounterOffer); err != nil {
		return domain.CounterOffer{}, fmt.Errorf("mark counter-offer: %w", err)
	}

	n.rt.BroadcastToAuction(auctionID, domain.EventCounterMade, domain.Payload{
		"auction": map[string]any{
			"id":     auctionID,
			"title":  a.Title,
			"status": domain.StatusCounterOffer,
		},
		"counterOffer": map[string]any{
			"originalBid":        final.Amount,
			"counterOfferAmount": amount,
			"buyerId":            buyer.ID,
			"buyerName":          buyer.DisplayName,
		},
	})
	n.rt.NotifyUser(buyer.ID, domain.EventCounterReceived, domain.Payload{
		"auctionId": auctionID,
		"auction":   map[string]any{"title": a.Title},
		"counterOffer": map[string]any{
			"originalBid":        final.Amount,
			"counterOfferAmount": amount,
		},
		"expiresAt": offer.ExpiresAt,
	})

	n.hooks.CounterOffered(a, buyer, offer)

	n.logger.InfoContext(ctx, "counter-offer made",
		slog.String("auction_id", auctionID),
		slog.String("buyer_id", buyer.ID),
		slog.String("amount", amount.String()),
	)
	return offer, nil
}

// Get returns the auction's active counter-offer. Reading an offer past its
// window discards it and reports ErrNotFound.
func (n *Negotiation) Get(ctx context.Context, auctionID string) (domain.CounterOffer, error) {
	return n.offers.Get(ctx, auctionID)
}

// Accept records the designated buyer's acceptance: the auction closes at the
// counter-offer amount, not the original bid.
func (n *Negotiation) Accept(ctx context.Context, auctionID, buyerID string) (domain.Settlement, error) {
	offer, a, buyer, err := n.pending(ctx, auctionID, buyerID)
	if err != nil {
		return domain.Settlement{}, err
	}

	now := n.now()
	offer.Status = domain.CounterOfferAccepted
	offer.RespondedAt = &now
	if err := n.offers.Put(ctx, offer); err != nil {
		return domain.Settlement{}, fmt.Errorf("store counter-offer: %w", err)
	}
	if err := n.auctions.UpdateStatus(ctx, auctionID, domain.StatusClosed); err != nil {
		return domain.Settlement{}, fmt.Errorf("mark closed: %w", err)
	}

	s := domain.Settlement{
		AuctionID:  auctionID,
		Title:      a.Title,
		SellerID:   a.SellerID,
		BuyerID:    buyer.ID,
		BuyerName:  buyer.DisplayName,
		SaleAmount: offer.Amount,
		ViaCounter: true,
		ClosedAt:   now,
	}

	n.rt.BroadcastToAuction(auctionID, domain.EventCounterAccepted, domain.Payload{
		"auction": map[string]any{
			"id":     auctionID,
			"title":  a.Title,
			"status": domain.StatusClosed,
		},
		"counterOffer": map[string]any{
			"finalAmount": offer.Amount,
			"buyerId":     buyer.ID,
			"buyerName":   buyer.DisplayName,
		},
	})
	n.rt.NotifyUser(buyer.ID, domain.EventCounterSuccess, domain.Payload{
		"auctionId":   auctionID,
		"auction":     map[string]any{"title": a.Title},
		"finalAmount": offer.Amount,
	})
	n.rt.NotifyUser(a.SellerID, domain.EventCounterBuyerAccepted, domain.Payload{
		"auctionId":   auctionID,
		"auction":     map[string]any{"title": a.Title},
		"buyerName":   buyer.DisplayName,
		"finalAmount": offer.Amount,
	})

	n.hooks.SaleClosed(a, buyer, s)
	n.life.cleanupClosed(ctx, auctionID)

	n.logger.InfoContext(ctx, "counter-offer accepted",
		slog.String("auction_id", auctionID),
		slog.String("amount", offer.Amount.String()),
	)
	return s, nil
}

// Reject records the designated buyer's rejection: the auction returns to
// ended with no sale.
func (n *Negotiation) Reject(ctx context.Context, auctionID, buyerID string) error {
	offer, a, buyer, err := n.pending(ctx, auctionID, buyerID)
	if err != nil {
		return err
	}

	now := n.now()
	offer.Status = domain.CounterOfferRejected
	offer.RespondedAt = &now
	if err := n.offers.Put(ctx, offer); err != nil {
		return fmt.Errorf("store counter-offer: %w", err)
	}
	if err := n.auctions.UpdateStatus(ctx, auctionID, domain.StatusEnded); err != nil {
		return fmt.Errorf("mark ended: %w", err)
	}

	n.rt.BroadcastToAuction(auctionID, domain.EventCounterRejected, domain.Payload{
		"auction": map[string]any{
			"id":     auctionID,
			"title":  a.Title,
			"status": domain.StatusEnded,
		},
		"counterOffer": map[string]any{
			"rejectedAmount": offer.Amount,
			"buyerId":        buyer.ID,
			"buyerName":      buyer.DisplayName,
		},
	})
	n.rt.NotifyUser(buyer.ID, domain.EventCounterRejectedDone, domain.Payload{
		"auctionId":      auctionID,
		"auction":        map[string]any{"title": a.Title},
		"rejectedAmount": offer.Amount,
	})
	n.rt.NotifyUser(a.SellerID, domain.EventCounterBuyerRejected, domain.Payload{
		"auctionId":      auctionID,
		"auction":        map[string]any{"title": a.Title},
		"buyerName":      buyer.DisplayName,
		"rejectedAmount": offer.Amount,
	})

	n.hooks.CounterRejected(a, buyer, offer)
	n.life.cleanupClosed(ctx, auctionID)

	n.logger.InfoContext(ctx, "counter-offer rejected",
		slog.String("auction_id", auctionID),
	)
	return nil
}

// pending loads the auction's counter-offer and checks that buyerID may
// answer it and that it is still pending. Expired offers surface as
// ErrNotFound from the cache read.
func (n *Negotiation) pending(ctx context.Context, auctionID, buyerID string) (domain.CounterOffer, domain.Auction, domain.User, error) {
	offer, err := n.offers.Get(ctx, auctionID)
	if err != nil {
		return domain.CounterOffer{}, domain.Auction{}, domain.User{}, err
	}
	if offer.BuyerID != buyerID {
		return domain.CounterOffer{}, domain.Auction{}, domain.User{}, domain.ErrWrongBuyer
	}
	if offer.Status != domain.CounterOfferPending {
		return domain.CounterOffer{}, domain.Auction{}, domain.User{}, domain.ErrOfferNotPending
	}

	a, err := n.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return domain.CounterOffer{}, domain.Auction{}, domain.User{}, err
	}
	buyer, err := n.users.GetByID(ctx, buyerID)
	if err != nil {
		return domain.CounterOffer{}, domain.Auction{}, domain.User{}, err
	}
	return offer, a, buyer, nil
}

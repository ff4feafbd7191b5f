package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
	"github.com/jrmarot/bidhouse/internal/server/middleware"
)

// NegotiationService defines the counter-offer operations the handler
// requires.
type NegotiationService interface {
	Make(ctx context.Context, auctionID, sellerID string, amount decimal.Decimal) (domain.CounterOffer, error)
	Get(ctx context.Context, auctionID string) (domain.CounterOffer, error)
	Accept(ctx context.Context, auctionID, buyerID string) (domain.Settlement, error)
	Reject(ctx context.Context, auctionID, buyerID string) error
}

// CounterOfferHandler serves the post-close negotiation endpoints.
type CounterOfferHandler struct {
	offers NegotiationService
	logger *slog.Logger
}

// NewCounterOfferHandler creates a CounterOfferHandler.
func NewCounterOfferHandler(offers NegotiationService, logger *slog.Logger) *CounterOfferHandler {
	return &CounterOfferHandler{
		offers: offers,
		logger: logHandler(logger, "counteroffer"),
	}
}

// makeCounterOfferRequest is the JSON body for making a counter-offer.
type makeCounterOfferRequest struct {
	CounterOfferAmount decimal.Decimal `json:"counterOfferAmount"`
}

// MakeCounterOffer proposes a counter-offer on an ended auction. Seller only.
// POST /api/auctions/{id}/counter-offer
func (h *CounterOfferHandler) MakeCounterOffer(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.UserID(r.Context())
	if sellerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req makeCounterOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	offer, err := h.offers.Make(r.Context(), pathParam(r, "id"), sellerID, req.CounterOfferAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "counter offer sent",
		"counterOffer": offer,
	})
}

// GetCounterOffer returns the auction's active counter-offer. Expired offers
// read as 404.
// GET /api/auctions/{id}/counter-offer
func (h *CounterOfferHandler) GetCounterOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offers.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counterOffer": offer})
}

// AcceptCounterOffer records the designated buyer's acceptance.
// POST /api/auctions/{id}/counter-offer/accept
func (h *CounterOfferHandler) AcceptCounterOffer(w http.ResponseWriter, r *http.Request) {
	buyerID := middleware.UserID(r.Context())
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s, err := h.offers.Accept(r.Context(), pathParam(r, "id"), buyerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "counter offer accepted",
		"finalAmount": s.SaleAmount,
		"settlement":  s,
	})
}

// RejectCounterOffer records the designated buyer's rejection.
// POST /api/auctions/{id}/counter-offer/reject
func (h *CounterOfferHandler) RejectCounterOffer(w http.ResponseWriter, r *http.Request) {
	buyerID := middleware.UserID(r.Context())
	if buyerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	auctionID := pathParam(r, "id")
	if err := h.offers.Reject(r.Context(), auctionID, buyerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "counter offer rejected",
		"auction": map[string]any{"id": auctionID, "status": domain.StatusEnded},
	})
}

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

// BidService defines the bid operations the handler requires.
type BidService interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error)
	DeleteBid(ctx context.Context, auctionID, bidID, bidderID string) error
}

// BidHandler serves bid placement and deletion.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		bids:   bids,
		logger: logHandler(logger, "bid"),
	}
}

// placeBidRequest is the JSON body for bid placement.
type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PlaceBid submits a bid on a live auction. A 409 response means another bid
// held the auction's lock; the client should retry.
// POST /api/auctions/{id}/bid
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID := middleware.UserID(r.Context())
	if bidderID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), pathParam(r, "id"), bidderID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "bid placed",
		"bid":     bid,
	})
}

// DeleteBid removes the caller's own bid from a live auction. The current
// highest bid cannot be removed.
// DELETE /api/auctions/{auctionId}/bid/{bidId}
func (h *BidHandler) DeleteBid(w http.ResponseWriter, r *http.Request) {
	bidderID := middleware.UserID(r.Context())
	if bidderID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	err := h.bids.DeleteBid(r.Context(), pathParam(r, "auctionId"), pathParam(r, "bidId"), bidderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "bid deleted"})
}

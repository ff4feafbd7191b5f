package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/auction"
	"github.com/jrmarot/bidhouse/internal/domain"
	"github.com/jrmarot/bidhouse/internal/server/middleware"
)

// CatalogService defines the CRUD operations the auction handler requires.
type CatalogService interface {
	Create(ctx context.Context, in auction.CreateAuctionInput) (domain.Auction, error)
	List(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, int64, error)
	Get(ctx context.Context, auctionID string) (auction.AuctionDetail, error)
	Delete(ctx context.Context, auctionID, sellerID string) error
}

// DecisionService defines the seller decisions on an auction's highest bid.
type DecisionService interface {
	Accept(ctx context.Context, auctionID, sellerID string) (domain.Settlement, error)
	Reject(ctx context.Context, auctionID, sellerID string) error
}

// AuctionHandler serves auction CRUD and seller-decision endpoints.
type AuctionHandler struct {
	catalog   CatalogService
	decisions DecisionService
	logger    *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(catalog CatalogService, decisions DecisionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		catalog:   catalog,
		decisions: decisions,
		logger:    logHandler(logger, "auction"),
	}
}

// createAuctionRequest is the JSON body for auction creation.
type createAuctionRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	BidIncrement  decimal.Decimal `json:"bidIncrement"`
	StartAt       time.Time       `json:"startAt"`
	EndAt         time.Time       `json:"endAt"`
}

// listAuctionsResponse wraps the auction list response.
type listAuctionsResponse struct {
	Auctions []domain.Auction `json:"auctions"`
	Total    int64            `json:"total"`
}

// ListAuctions returns auctions filtered by status.
// GET /api/auctions?status=live&limit=20&offset=0
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	status := domain.AuctionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusLive
	}

	items, total, err := h.catalog.List(r.Context(), status, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list auctions failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if items == nil {
		items = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, listAuctionsResponse{Auctions: items, Total: total})
}

// GetAuction returns the full auction detail: record, seller, bid history,
// and live state.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	d, err := h.catalog.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateAuction creates a new scheduled auction owned by the caller.
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.UserID(r.Context())
	if sellerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.catalog.Create(r.Context(), auction.CreateAuctionInput{
		SellerID:      sellerID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		BidIncrement:  req.BidIncrement,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"auction": a})
}

// DeleteAuction removes an auction and its bids. Seller only.
// DELETE /api/auctions/{id}
func (h *AuctionHandler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.UserID(r.Context())
	if sellerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.catalog.Delete(r.Context(), pathParam(r, "id"), sellerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "auction deleted"})
}

// AcceptBid closes an auction at its highest bid, ending it first when it is
// still live. Seller only.
// POST /api/auctions/{id}/accept
func (h *AuctionHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.UserID(r.Context())
	if sellerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s, err := h.decisions.Accept(r.Context(), pathParam(r, "id"), sellerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "bid accepted",
		"settlement": s,
	})
}

// RejectBid declines the highest bid on an ended auction. Seller only.
// POST /api/auctions/{id}/reject
func (h *AuctionHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.UserID(r.Context())
	if sellerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	auctionID := pathParam(r, "id")
	if err := h.decisions.Reject(r.Context(), auctionID, sellerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "bid rejected",
		"auction": map[string]any{"id": auctionID, "status": domain.StatusEnded},
	})
}

// Package server assembles the HTTP + WebSocket API: routes, middleware, and
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jrmarot/bidhouse/internal/domain"
	"github.com/jrmarot/bidhouse/internal/server/handler"
	"github.com/jrmarot/bidhouse/internal/server/middleware"
	"github.com/jrmarot/bidhouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Auctions      *handler.AuctionHandler
	Bids          *handler.BidHandler
	CounterOffers *handler.CounterOfferHandler
	Cron          *handler.CronHandler
}

// Server is the HTTP + WebSocket API server for the auction system.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, identity, auth, logging, CORS) and
// attaches the WebSocket hub. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Auction catalog.
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("POST /api/auctions", handlers.Auctions.CreateAuction)
	mux.HandleFunc("DELETE /api/auctions/{id}", handlers.Auctions.DeleteAuction)

	// Bidding.
	mux.HandleFunc("POST /api/auctions/{id}/bid", handlers.Bids.PlaceBid)
	mux.HandleFunc("DELETE /api/auctions/{auctionId}/bid/{bidId}", handlers.Bids.DeleteBid)

	// Seller decisions.
	mux.HandleFunc("POST /api/auctions/{id}/accept", handlers.Auctions.AcceptBid)
	mux.HandleFunc("POST /api/auctions/{id}/reject", handlers.Auctions.RejectBid)

	// Counter-offer negotiation.
	mux.HandleFunc("POST /api/auctions/{id}/counter-offer", handlers.CounterOffers.MakeCounterOffer)
	mux.HandleFunc("GET /api/auctions/{id}/counter-offer", handlers.CounterOffers.GetCounterOffer)
	mux.HandleFunc("POST /api/auctions/{id}/counter-offer/accept", handlers.CounterOffers.AcceptCounterOffer)
	mux.HandleFunc("POST /api/auctions/{id}/counter-offer/reject", handlers.CounterOffers.RejectCounterOffer)

	// External scheduler endpoints.
	mux.HandleFunc("POST /api/cron/tick", handlers.Cron.Tick)
	mux.HandleFunc("GET /api/cron/status", handlers.Cron.Status)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	// Identity sits outside Logging so request lines carry the caller.
	h = middleware.Identity()(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

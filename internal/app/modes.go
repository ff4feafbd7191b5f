package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrmarot/bidhouse/internal/auction"
	"github.com/jrmarot/bidhouse/internal/server"
	"github.com/jrmarot/bidhouse/internal/server/handler"
	"github.com/jrmarot/bidhouse/internal/server/ws"
)

// services groups the auction services shared by the HTTP handlers and the
// sweeper.
type services struct {
	placer      *auction.Placer
	lifecycle   *auction.Lifecycle
	negotiation *auction.Negotiation
	catalog     *auction.Catalog
}

func (a *App) buildServices(deps *Dependencies, hub *ws.Hub) *services {
	life := auction.NewLifecycle(
		deps.Auctions, deps.Bids, deps.Users,
		deps.Live, deps.Offers,
		hub, deps.Hooks, a.logger,
	)
	life.SetOperatorNotifier(deps.Notifier)
	return &services{
		placer: auction.NewPlacer(
			deps.Auctions, deps.Bids, deps.Users,
			deps.Locks, deps.Live,
			hub, a.cfg.Auction.LockLease.Duration, a.logger,
		),
		lifecycle: life,
		negotiation: auction.NewNegotiation(
			deps.Auctions, deps.Users, deps.Offers,
			life, hub, deps.Hooks,
			a.cfg.Auction.CounterOfferTTL.Duration, a.logger,
		),
		catalog: auction.NewCatalog(
			deps.Auctions, deps.Bids, deps.Users,
			deps.Live, deps.Offers,
			hub, a.logger,
		),
	}
}

// ServerMode runs the HTTP API and the WebSocket hub. Lifecycle transitions
// are expected to come from an external scheduler hitting POST /api/cron/tick,
// or from a separate sweep-mode process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	svcs := a.buildServices(deps, hub)
	a.startHTTPServer(ctx, g, deps, svcs, hub)

	return g.Wait()
}

// SweepMode runs only the lifecycle sweeper. Broadcasts still reach connected
// clients: they go out through the signal bus, which the server processes
// consume.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	// Publisher only; no client connections in this mode, so Run is not
	// started and HandleWS is never registered.
	hub := ws.NewHub(deps.Bus, a.logger)
	svcs := a.buildServices(deps, hub)

	sweeper := auction.NewSweeper(svcs.lifecycle, a.cfg.Auction.SweepInterval.Duration, a.logger)
	sweeper.SetOperatorNotifier(deps.Notifier)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	return g.Wait()
}

// FullMode runs everything in one process: HTTP API, WebSocket hub, and the
// lifecycle sweeper.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	svcs := a.buildServices(deps, hub)
	a.startHTTPServer(ctx, g, deps, svcs, hub)

	sweeper := auction.NewSweeper(svcs.lifecycle, a.cfg.Auction.SweepInterval.Duration, a.logger)
	sweeper.SetOperatorNotifier(deps.Notifier)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	return g.Wait()
}

// startHTTPServer builds the handler set, constructs the server, and starts
// the listen and shutdown goroutines on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Pingers, a.logger),
		Auctions:      handler.NewAuctionHandler(svcs.catalog, svcs.lifecycle, a.logger),
		Bids:          handler.NewBidHandler(svcs.placer, a.logger),
		CounterOffers: handler.NewCounterOfferHandler(svcs.negotiation, a.logger),
		Cron:          handler.NewCronHandler(svcs.lifecycle, svcs.catalog, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

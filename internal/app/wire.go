package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/jrmarot/bidhouse/internal/blob/s3"
	"github.com/jrmarot/bidhouse/internal/cache/memory"
	"github.com/jrmarot/bidhouse/internal/cache/redis"
	"github.com/jrmarot/bidhouse/internal/config"
	"github.com/jrmarot/bidhouse/internal/domain"
	"github.com/jrmarot/bidhouse/internal/notify"
	"github.com/jrmarot/bidhouse/internal/server/handler"
	"github.com/jrmarot/bidhouse/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Auctions domain.AuctionStore
	Bids     domain.BidStore
	Users    domain.UserStore

	// Caches (Redis or in-process, per cache.backend)
	Locks   domain.LockManager
	Live    domain.LiveAuctionCache
	Offers  domain.CounterOfferCache
	Bus     domain.SignalBus
	Limiter domain.RateLimiter

	// Settlement archive; nil unless archive.enabled.
	Archiver domain.SettlementArchiver

	// Notifications
	Notifier *notify.Notifier
	Hooks    *notify.Hooks

	// Pingers feed the health endpoint, keyed by dependency name.
	Pingers map[string]handler.Pinger
}

// pingerFunc adapts a plain health-check function to handler.Pinger.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Pingers: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Auctions = postgres.NewAuctionStore(pool)
	deps.Bids = postgres.NewBidStore(pool)
	deps.Users = postgres.NewUserStore(pool)
	deps.Pingers["postgres"] = pgClient

	// --- Cache backend ---
	switch cfg.Cache.Backend {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.Live = redis.NewLiveAuctionCache(redisClient)
		deps.Offers = redis.NewCounterOfferCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Pingers["redis"] = redisClient

	case "memory":
		locks := memory.NewLockManager()
		live := memory.NewLiveAuctionCache()
		live.SetLockManager(locks)

		deps.Locks = locks
		deps.Live = live
		deps.Offers = memory.NewCounterOfferCache()
		deps.Bus = memory.NewSignalBus()
		deps.Limiter = memory.NewRateLimiter()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown cache backend %q", cfg.Cache.Backend)
	}

	// --- S3 settlement archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), "", logger)
		deps.Pingers["s3"] = pingerFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Hooks = notify.NewHooks(
		deps.Users,
		notify.NewLogMailer(logger),
		notify.NewTextInvoicer(),
		deps.Archiver,
		deps.Notifier,
		logger,
	)

	return deps, cleanup, nil
}

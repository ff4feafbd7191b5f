package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BIDHOUSE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BIDHOUSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BIDHOUSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BIDHOUSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BIDHOUSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BIDHOUSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BIDHOUSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BIDHOUSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BIDHOUSE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BIDHOUSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BIDHOUSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BIDHOUSE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BIDHOUSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BIDHOUSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BIDHOUSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BIDHOUSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BIDHOUSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BIDHOUSE_REDIS_TLS_ENABLED")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "BIDHOUSE_CACHE_BACKEND")

	// ── Auction ──
	setDuration(&cfg.Auction.LockLease, "BIDHOUSE_AUCTION_LOCK_LEASE")
	setDuration(&cfg.Auction.CounterOfferTTL, "BIDHOUSE_AUCTION_COUNTER_OFFER_TTL")
	setDuration(&cfg.Auction.SweepInterval, "BIDHOUSE_AUCTION_SWEEP_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BIDHOUSE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "BIDHOUSE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "BIDHOUSE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "BIDHOUSE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "BIDHOUSE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "BIDHOUSE_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "BIDHOUSE_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "BIDHOUSE_ARCHIVE_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "BIDHOUSE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BIDHOUSE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BIDHOUSE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BIDHOUSE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BIDHOUSE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BIDHOUSE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BIDHOUSE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BIDHOUSE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BIDHOUSE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BIDHOUSE_MODE")
	setStr(&cfg.LogLevel, "BIDHOUSE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "server"
log_level = "debug"

[postgres]
host = "db.internal"
port = 5433

[cache]
backend = "memory"

[auction]
lock_lease = "5s"
counter_offer_ttl = "48h"

[server]
port = 9100
cors_origins = ["https://bids.example.com"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "server", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, 5433, cfg.Postgres.Port)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, 5*time.Second, cfg.Auction.LockLease.Duration)
	require.Equal(t, 48*time.Hour, cfg.Auction.CounterOfferTTL.Duration)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, []string{"https://bids.example.com"}, cfg.Server.CORSOrigins)

	// Fields the file never mentions keep their defaults.
	require.Equal(t, "bidhouse", cfg.Postgres.Database)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 120, cfg.Server.RateLimit)
	require.Equal(t, time.Minute, cfg.Server.RateWindow.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
[auction]
lock_lease = "two seconds"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BIDHOUSE_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("BIDHOUSE_SERVER_RATE_LIMIT", "5")
	t.Setenv("BIDHOUSE_SERVER_RATE_WINDOW", "30s")
	t.Setenv("BIDHOUSE_CACHE_BACKEND", "memory")
	t.Setenv("BIDHOUSE_NOTIFY_EVENTS", "auction_ended, sweep_error")

	path := writeConfig(t, `
[postgres]
password = "from-file"

[server]
rate_limit = 99
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "hunter2", cfg.Postgres.Password)
	require.Equal(t, 5, cfg.Server.RateLimit)
	require.Equal(t, 30*time.Second, cfg.Server.RateWindow.Duration)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, []string{"auction_ended", "sweep_error"}, cfg.Notify.Events)
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 2*time.Second, cfg.Auction.LockLease.Duration)
	require.Equal(t, 24*time.Hour, cfg.Auction.CounterOfferTTL.Duration)
	require.Equal(t, 15*time.Second, cfg.Auction.SweepInterval.Duration)
	require.Equal(t, "full", cfg.Mode)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"unknown_mode", func(c *Config) { c.Mode = "worker" }, "unknown mode"},
		{"unknown_log_level", func(c *Config) { c.LogLevel = "trace" }, "unknown log_level"},
		{"empty_postgres_host", func(c *Config) { c.Postgres.Host = "" }, "postgres: host"},
		{"pool_min_above_max", func(c *Config) { c.Postgres.PoolMinConns = 50 }, "pool_min_conns"},
		{"unknown_cache_backend", func(c *Config) { c.Cache.Backend = "memcached" }, "unknown backend"},
		{"zero_lock_lease", func(c *Config) { c.Auction.LockLease.Duration = 0 }, "lock_lease must be > 0"},
		{"huge_lock_lease", func(c *Config) { c.Auction.LockLease.Duration = time.Minute }, "lock_lease"},
		{"zero_offer_ttl", func(c *Config) { c.Auction.CounterOfferTTL.Duration = 0 }, "counter_offer_ttl"},
		{"bad_port", func(c *Config) { c.Server.Port = 0 }, "port must be 1-65535"},
		{"rate_limit_without_window", func(c *Config) {
			c.Server.RateLimit = 10
			c.Server.RateWindow.Duration = 0
		}, "rate_window"},
		{"archive_enabled_without_bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Bucket = ""
		}, "archive: bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateAllowsDSNWithoutHostParts(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://u:p@db:5432/bidhouse"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.Server.Port = -1
	cfg.Auction.LockLease.Duration = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "port must be 1-65535")
	require.Contains(t, err.Error(), "lock_lease")
}

func TestDurationRoundTrip(t *testing.T) {
	d := duration{90 * time.Second}
	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))

	var back duration
	require.NoError(t, back.UnmarshalText(text))
	require.Equal(t, d, back)

	require.Error(t, back.UnmarshalText([]byte("soon")))
}

// Package config defines the top-level configuration for the trading-post
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TPBOT_* environment variables.
type Config struct {
	GW2       GW2Config       `toml:"gw2"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Ingest    IngestConfig    `toml:"ingest"`
	Aggregate AggregateConfig `toml:"aggregate"`
	Scanner   ScannerConfig   `toml:"scanner"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// GW2Config holds the upstream API endpoint and request pacing.
type GW2Config struct {
	BaseURL string `toml:"base_url"`

	// RateLimit / RateWindow pace outgoing API calls through the shared
	// limiter.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`

	// ResolveConcurrency bounds parallel per-item name lookups during
	// aggregation.
	ResolveConcurrency int `toml:"resolve_concurrency"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: without
// it the bot skips name caching, upstream rate limiting falls back to the
// client timeout, and aggregation runs are not serialized across
// deployments.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the tick-batch shuttle bucket parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IngestConfig holds price-sweep parameters.
type IngestConfig struct {
	// Interval between full-market price sweeps.
	Interval duration `toml:"interval"`

	// ExportPrefix is the object-key prefix for exported tick batches.
	ExportPrefix string `toml:"export_prefix"`
}

// AggregateConfig holds daily aggregation scheduling.
type AggregateConfig struct {
	// Cron is the 5-field schedule for aggregation runs, e.g. "10 0 * * *"
	// shortly after the UTC day closes.
	Cron string `toml:"cron"`
}

// ScannerConfig holds the fast-flip filter thresholds.
type ScannerConfig struct {
	MaxBuyWaitRatio float64 `toml:"max_buy_wait_ratio"`
	MinSellSpeed    int64   `toml:"min_sell_speed"`
	MinNetGain      int64   `toml:"min_net_gain"`
	MinSpreadPct    float64 `toml:"min_spread_pct"`
}

// MetricsConfig holds the Prometheus listener parameters.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		GW2: GW2Config{
			BaseURL:            "https://api.guildwars2.com/v2",
			RateLimit:          300,
			RateWindow:         duration{time.Minute},
			ResolveConcurrency: 8,
		},
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "tpbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tpbot-ticks",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Ingest: IngestConfig{
			Interval:     duration{5 * time.Minute},
			ExportPrefix: "ticks/",
		},
		Aggregate: AggregateConfig{
			Cron: "10 0 * * *",
		},
		Scanner: ScannerConfig{
			MaxBuyWaitRatio: 1.5,
			MinSellSpeed:    1000,
			MinNetGain:      15,
			MinSpreadPct:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":       true,
	"ingest":    true,
	"export":    true,
	"import":    true,
	"aggregate": true,
	"catalog":   true,
	"scan":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// modesNeedingDatabase lists the modes that open a PostgreSQL pool. The only
// exception is export, which runs on fetch-only hosts with no database at
// all.
var modesNeedingDatabase = map[string]bool{
	"run":       true,
	"ingest":    true,
	"import":    true,
	"aggregate": true,
	"catalog":   true,
	"scan":      true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, ingest, export, import, aggregate, catalog, scan)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// GW2
	if c.GW2.BaseURL == "" {
		errs = append(errs, "gw2: base_url must not be empty")
	}
	if c.GW2.RateLimit < 1 {
		errs = append(errs, "gw2: rate_limit must be >= 1")
	}
	if c.GW2.RateWindow.Duration <= 0 {
		errs = append(errs, "gw2: rate_window must be positive")
	}
	if c.GW2.ResolveConcurrency < 1 {
		errs = append(errs, "gw2: resolve_concurrency must be >= 1")
	}

	// Database
	if modesNeedingDatabase[mode] {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1 when enabled")
		}
	}

	// S3 — only the shuttle modes touch the bucket.
	if mode == "export" || mode == "import" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty for mode "+mode)
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for mode "+mode)
		}
	}

	// Ingest
	if c.Ingest.Interval.Duration <= 0 {
		errs = append(errs, "ingest: interval must be positive")
	}
	if c.Ingest.ExportPrefix == "" {
		errs = append(errs, "ingest: export_prefix must not be empty")
	}

	// Aggregate
	if strings.TrimSpace(c.Aggregate.Cron) == "" {
		errs = append(errs, "aggregate: cron must not be empty")
	}

	// Scanner
	if c.Scanner.MaxBuyWaitRatio <= 0 {
		errs = append(errs, "scanner: max_buy_wait_ratio must be > 0")
	}
	if c.Scanner.MinSellSpeed < 0 {
		errs = append(errs, "scanner: min_sell_speed must be >= 0")
	}
	if c.Scanner.MinSpreadPct < 0 {
		errs = append(errs, "scanner: min_spread_pct must be >= 0")
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TPBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known TPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── GW2 ──
	setStr(&cfg.GW2.BaseURL, "TPBOT_GW2_BASE_URL")
	setInt(&cfg.GW2.RateLimit, "TPBOT_GW2_RATE_LIMIT")
	setDuration(&cfg.GW2.RateWindow, "TPBOT_GW2_RATE_WINDOW")
	setInt(&cfg.GW2.ResolveConcurrency, "TPBOT_GW2_RESOLVE_CONCURRENCY")

	// ── Database ──
	setStr(&cfg.Database.DSN, "TPBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "TPBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "TPBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "TPBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "TPBOT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "TPBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "TPBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "TPBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "TPBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "TPBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "TPBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TPBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TPBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "TPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TPBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TPBOT_S3_FORCE_PATH_STYLE")

	// ── Ingest ──
	setDuration(&cfg.Ingest.Interval, "TPBOT_INGEST_INTERVAL")
	setStr(&cfg.Ingest.ExportPrefix, "TPBOT_INGEST_EXPORT_PREFIX")

	// ── Aggregate ──
	setStr(&cfg.Aggregate.Cron, "TPBOT_AGGREGATE_CRON")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.MaxBuyWaitRatio, "TPBOT_SCANNER_MAX_BUY_WAIT_RATIO")
	setInt64(&cfg.Scanner.MinSellSpeed, "TPBOT_SCANNER_MIN_SELL_SPEED")
	setInt64(&cfg.Scanner.MinNetGain, "TPBOT_SCANNER_MIN_NET_GAIN")
	setFloat64(&cfg.Scanner.MinSpreadPct, "TPBOT_SCANNER_MIN_SPREAD_PCT")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "TPBOT_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "TPBOT_METRICS_ADDR")

	// ── Top-level ──
	setStr(&cfg.Mode, "TPBOT_MODE")
	setStr(&cfg.LogLevel, "TPBOT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/tpbot/internal/blob/s3"
	"github.com/alanyoungcy/tpbot/internal/cache/redis"
	"github.com/alanyoungcy/tpbot/internal/config"
	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/instrumentation"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
	"github.com/alanyoungcy/tpbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	TickStore     domain.TickStore
	SnapshotStore domain.SnapshotStore
	ItemStore     domain.ItemStore

	// Redis-backed utilities (nil when redis is disabled)
	NameCache   domain.ItemNameCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage (nil outside the shuttle modes). BlobSource covers both
	// reading and deleting consumed batch objects.
	BlobWriter *s3blob.Writer
	BlobSource *s3blob.Reader

	// Upstream API
	GW2 *gw2.Client

	// Instrumentation
	Metrics *instrumentation.Recorder
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	return mode != "export"
}

// needsS3 returns true for modes that touch the tick-batch bucket.
func needsS3(mode string) bool {
	return mode == "export" || mode == "import"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: instrumentation.New(),
	}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TickStore = postgres.NewTickStore(pool)
		deps.SnapshotStore = postgres.NewSnapshotStore(pool)
		deps.ItemStore = postgres.NewItemStore(pool)
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
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

		deps.NameCache = redis.NewItemNameCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		logger.Warn("redis disabled: name caching, request pacing, and run locking are off")
	}

	// --- S3 blob storage (only for the shuttle modes) ---
	if needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobSource = s3blob.NewReader(s3Client)
	}

	// --- Upstream API client ---
	deps.GW2 = gw2.NewClient(
		cfg.GW2.BaseURL,
		deps.RateLimiter,
		cfg.GW2.RateLimit,
		cfg.GW2.RateWindow.Duration,
	)

	return deps, cleanup, nil
}

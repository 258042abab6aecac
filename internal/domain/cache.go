package domain

import (
	"context"
	"time"
)

// ItemNameCache caches resolved item names so the resolver does not hit the
// upstream API for ids it has already seen.
type ItemNameCache interface {
	// Get returns the cached name for an item, or ErrNotFound.
	Get(ctx context.Context, itemID int64) (string, error)
	Set(ctx context.Context, itemID int64, name string) error
}

// RateLimiter paces calls against the upstream commerce API.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Wait blocks until a request for key is permitted or ctx is done.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides coarse distributed locks. The aggregation run holds
// one so two deployments cannot process the same days concurrently.
type LockManager interface {
	// Acquire takes the named lock for ttl. It returns ErrLockHeld when the
	// lock is already taken, and a release func on success; the release func
	// is safe to call more than once.
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

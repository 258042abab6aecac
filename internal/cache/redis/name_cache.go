package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// nameTTL keeps resolved names for a day; item names change rarely enough
// that a stale entry costs at most one wrong display name until the next
// resolution.
const nameTTL = 24 * time.Hour

// ItemNameCache implements domain.ItemNameCache using plain Redis strings.
//
// Key schema:
//
//	item:name:{id} - resolved display name
type ItemNameCache struct {
	rdb *redis.Client
}

// NewItemNameCache creates an ItemNameCache backed by the given Client.
func NewItemNameCache(c *Client) *ItemNameCache {
	return &ItemNameCache{rdb: c.Underlying()}
}

func nameKey(itemID int64) string {
	return "item:name:" + strconv.FormatInt(itemID, 10)
}

// Get returns the cached name for an item, or domain.ErrNotFound.
func (nc *ItemNameCache) Get(ctx context.Context, itemID int64) (string, error) {
	name, err := nc.rdb.Get(ctx, nameKey(itemID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get item name %d: %w", itemID, err)
	}
	return name, nil
}

// Set stores a resolved name with the standard TTL.
func (nc *ItemNameCache) Set(ctx context.Context, itemID int64, name string) error {
	if err := nc.rdb.Set(ctx, nameKey(itemID), name, nameTTL).Err(); err != nil {
		return fmt.Errorf("redis: set item name %d: %w", itemID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ItemNameCache = (*ItemNameCache)(nil)

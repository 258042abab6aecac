package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
)

// catalogChunkSize bounds the upsert batch so a full catalog import stays in
// modestly sized transactions.
const catalogChunkSize = 500

// CatalogFetcher retrieves the tradable item set and its catalog entries.
type CatalogFetcher interface {
	ListPriceIDs(ctx context.Context) ([]int64, error)
	GetItems(ctx context.Context, ids []int64) ([]gw2.ItemInfo, error)
}

// CatalogImporter bulk-loads the item catalog for every tradable item, so the
// per-id resolver only has to handle stragglers.
type CatalogImporter struct {
	fetcher CatalogFetcher
	items   domain.ItemStore
	logger  *slog.Logger
}

// NewCatalogImporter creates a CatalogImporter.
func NewCatalogImporter(fetcher CatalogFetcher, items domain.ItemStore, logger *slog.Logger) *CatalogImporter {
	return &CatalogImporter{
		fetcher: fetcher,
		items:   items,
		logger:  logger,
	}
}

// Run fetches the full tradable item set and upserts every catalog entry.
// Existing rows get their names refreshed.
func (c *CatalogImporter) Run(ctx context.Context) error {
	ids, err := c.fetcher.ListPriceIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing tradable items: %w", err)
	}

	c.logger.Info("importing item catalog", slog.Int("tradable", len(ids)))

	infos, err := c.fetcher.GetItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetching catalog entries: %w", err)
	}

	items := make([]domain.Item, 0, len(infos))
	for _, info := range infos {
		name := info.Name
		if name == "" {
			name = domain.PlaceholderName(info.ID)
		}
		items = append(items, domain.Item{ID: info.ID, Name: name})
	}

	for start := 0; start < len(items); start += catalogChunkSize {
		end := start + catalogChunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := c.items.UpsertBatch(ctx, items[start:end]); err != nil {
			return fmt.Errorf("upserting catalog chunk at %d: %w", start, err)
		}
	}

	c.logger.Info("catalog import complete", slog.Int("items", len(items)))
	return nil
}

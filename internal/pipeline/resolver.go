package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
)

// resolveTimeout bounds each upstream item lookup so one slow call cannot
// stall the aggregation run.
const resolveTimeout = 5 * time.Second

// ItemFetcher retrieves a single catalog entry from the upstream API.
type ItemFetcher interface {
	GetItem(ctx context.Context, id int64) (gw2.ItemInfo, error)
}

// NameResolver guarantees an item row exists for every id before snapshots
// reference it. Lookups go cache first, then the upstream API; any failure
// falls back to a deterministic placeholder name so aggregation never blocks
// on the catalog.
type NameResolver struct {
	items       domain.ItemStore
	cache       domain.ItemNameCache
	fetcher     ItemFetcher
	metrics     Metrics
	logger      *slog.Logger
	concurrency int
}

// NewNameResolver creates a NameResolver. cache may be nil, in which case
// every miss goes straight to the upstream API.
func NewNameResolver(
	items domain.ItemStore,
	cache domain.ItemNameCache,
	fetcher ItemFetcher,
	metrics Metrics,
	logger *slog.Logger,
	concurrency int,
) *NameResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &NameResolver{
		items:       items,
		cache:       cache,
		fetcher:     fetcher,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

// EnsureItems creates item rows for every id in ids that has none yet. It
// returns an error only for store failures or context cancellation; lookup
// failures degrade to placeholder names.
func (r *NameResolver) EnsureItems(ctx context.Context, ids []int64) error {
	missing, err := r.items.FilterMissing(ctx, ids)
	if err != nil {
		return fmt.Errorf("filtering unknown items: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	r.logger.Info("resolving unknown items", slog.Int("count", len(missing)))

	resolved := make([]domain.Item, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved[i] = domain.Item{ID: id, Name: r.resolveName(gctx, id)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolving names: %w", err)
	}

	if err := r.items.UpsertBatch(ctx, resolved); err != nil {
		return fmt.Errorf("upserting %d items: %w", len(resolved), err)
	}
	return nil
}

// resolveName returns the display name for one id: cache, then upstream API,
// then placeholder.
func (r *NameResolver) resolveName(ctx context.Context, id int64) string {
	if r.cache != nil {
		if name, err := r.cache.Get(ctx, id); err == nil {
			return name
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	info, err := r.fetcher.GetItem(callCtx, id)
	if err != nil || info.Name == "" {
		if err != nil {
			r.logger.Warn("item name lookup failed, using placeholder",
				slog.Int64("item_id", id),
				slog.String("error", err.Error()),
			)
		}
		r.metrics.RecordResolveFailure()
		return domain.PlaceholderName(id)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, id, info.Name); err != nil {
			r.logger.Warn("caching item name failed",
				slog.Int64("item_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return info.Name
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tpbot/internal/instrumentation"
	"github.com/alanyoungcy/tpbot/internal/pipeline"
	"github.com/alanyoungcy/tpbot/internal/scanner"
)

// RunMode starts the full long-running deployment: the ingest loop, the daily
// aggregation cron, and the metrics listener.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	g, ctx := errgroup.WithContext(ctx)

	orch := pipeline.NewOrchestrator(
		a.buildIngestor(deps),
		a.buildAggregator(deps),
		a.cfg.Ingest.Interval.Duration,
		a.cfg.Aggregate.Cron,
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	a.startMetrics(ctx, g)

	return g.Wait()
}

// IngestMode runs only the price-sweep loop against the local database. Used
// on deployments where aggregation is scheduled elsewhere.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode",
		slog.Duration("interval", a.cfg.Ingest.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	ing := a.buildIngestor(deps)
	g.Go(func() error {
		err := ing.RunLoop(ctx, a.cfg.Ingest.Interval.Duration)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})

	a.startMetrics(ctx, g)

	return g.Wait()
}

// ExportMode runs the price-sweep loop on a fetch-only host, uploading each
// sweep as a JSON batch instead of writing to a database.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting export mode",
		slog.Duration("interval", a.cfg.Ingest.Interval.Duration),
	)

	ing := a.buildIngestor(deps)

	// Sweep immediately on start.
	if err := ing.Export(ctx); err != nil {
		a.logger.ErrorContext(ctx, "export sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.cfg.Ingest.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "export mode stopped")
			return nil
		case <-ticker.C:
			if err := ing.Export(ctx); err != nil {
				a.logger.ErrorContext(ctx, "export sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ImportMode drains exported tick batches from the bucket into the database,
// then exits.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting import mode",
		slog.String("prefix", a.cfg.Ingest.ExportPrefix),
	)

	im := pipeline.NewImporter(deps.BlobSource, deps.TickStore, deps.Metrics, a.logger)
	if err := im.Run(ctx, a.cfg.Ingest.ExportPrefix); err != nil {
		return fmt.Errorf("import mode: %w", err)
	}
	return nil
}

// AggregateMode runs a single aggregation pass over every completed day,
// then exits. Meant for external schedulers and manual catch-up runs.
func (a *App) AggregateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting aggregate mode")

	if err := a.buildAggregator(deps).Run(ctx); err != nil {
		return fmt.Errorf("aggregate mode: %w", err)
	}
	return nil
}

// CatalogMode bulk-imports the item catalog for every tradable item, then
// exits.
func (a *App) CatalogMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting catalog mode")

	ci := pipeline.NewCatalogImporter(deps.GW2, deps.ItemStore, a.logger)
	if err := ci.Run(ctx); err != nil {
		return fmt.Errorf("catalog mode: %w", err)
	}
	return nil
}

// ScanMode prints the current fast-flip candidates and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	sc := scanner.New(
		deps.SnapshotStore,
		deps.TickStore,
		deps.ItemStore,
		scanner.Thresholds{
			MaxBuyWaitRatio: a.cfg.Scanner.MaxBuyWaitRatio,
			MinSellSpeed:    a.cfg.Scanner.MinSellSpeed,
			MinNetGain:      a.cfg.Scanner.MinNetGain,
			MinSpreadPct:    a.cfg.Scanner.MinSpreadPct,
		},
		a.logger,
	)

	cands, err := sc.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	if err := scanner.Render(os.Stdout, cands); err != nil {
		return fmt.Errorf("scan mode: render: %w", err)
	}
	return nil
}

// buildIngestor assembles the ingestor for the current mode. The tick store
// is nil in export mode and the blob writer is nil outside it; the ingestor
// only exercises the side its mode uses.
func (a *App) buildIngestor(deps *Dependencies) *pipeline.Ingestor {
	return pipeline.NewIngestor(deps.GW2, deps.TickStore, deps.BlobWriter, deps.Metrics, a.logger)
}

// buildAggregator assembles the daily aggregator with its name resolver.
func (a *App) buildAggregator(deps *Dependencies) *pipeline.DailyAggregator {
	resolver := pipeline.NewNameResolver(
		deps.ItemStore,
		deps.NameCache,
		deps.GW2,
		deps.Metrics,
		a.logger,
		a.cfg.GW2.ResolveConcurrency,
	)
	return pipeline.NewDailyAggregator(
		deps.TickStore,
		deps.SnapshotStore,
		resolver,
		deps.LockManager,
		deps.Metrics,
		a.logger,
	)
}

// startMetrics adds the Prometheus listener to the errgroup when enabled.
func (a *App) startMetrics(ctx context.Context, g *errgroup.Group) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	addr := a.cfg.Metrics.Addr
	g.Go(func() error {
		if err := instrumentation.Serve(ctx, addr, a.logger); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
}

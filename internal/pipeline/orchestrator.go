package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the long-running pipeline goroutines: the ingest loop
// and the daily aggregation cron.
type Orchestrator struct {
	ingestor       *Ingestor
	aggregator     *DailyAggregator
	ingestInterval time.Duration
	aggregateCron  string
	logger         *slog.Logger
}

// NewOrchestrator creates an Orchestrator that coordinates the pipeline
// sub-systems.
func NewOrchestrator(
	ingestor *Ingestor,
	aggregator *DailyAggregator,
	ingestInterval time.Duration,
	aggregateCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingestor:       ingestor,
		aggregator:     aggregator,
		ingestInterval: ingestInterval,
		aggregateCron:  aggregateCron,
		logger:         logger,
	}
}

// Run starts the sub-pipelines as concurrent goroutines using an errgroup.
// Each goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run returns
// that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("ingest_interval", o.ingestInterval),
		slog.String("aggregate_cron", o.aggregateCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	// 1. Ingestor on ticker.
	g.Go(func() error {
		o.logger.Info("starting ingest loop")
		err := o.ingestor.RunLoop(ctx, o.ingestInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ingestor: %w", err)
	})

	// 2. Aggregator on cron schedule.
	g.Go(func() error {
		o.logger.Info("starting aggregator cron")
		err := o.aggregator.RunCron(ctx, o.aggregateCron)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("aggregator: %w", err)
	})

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// Package pipeline contains the long-running workers: the tick ingestor, the
// blob shuttle exporter and importer, the catalog importer, and the daily
// aggregator that collapses raw ticks into snapshot rows.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tpbot/internal/aggregate"
	"github.com/alanyoungcy/tpbot/internal/domain"
)

// aggregateLockName guards the aggregation run across deployments.
const aggregateLockName = "aggregate:run"

// aggregateLockTTL bounds how long a crashed run can block the next one.
const aggregateLockTTL = 30 * time.Minute

// Metrics is the subset of the instrumentation recorder the pipeline reports
// to.
type Metrics interface {
	RecordTicksIngested(n int)
	RecordDayAggregated(snapshots int, purged int64, elapsed time.Duration)
	RecordResolveFailure()
}

// NopMetrics is a Metrics that records nothing.
type NopMetrics struct{}

func (NopMetrics) RecordTicksIngested(int)                       {}
func (NopMetrics) RecordDayAggregated(int, int64, time.Duration) {}
func (NopMetrics) RecordResolveFailure()                         {}

// DailyAggregator collapses every completed UTC calendar day of raw ticks
// into one snapshot row per item, then purges the day's ticks. The current
// day is never touched; it is still accumulating ticks.
type DailyAggregator struct {
	ticks    domain.TickStore
	snaps    domain.SnapshotStore
	resolver *NameResolver
	locks    domain.LockManager
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewDailyAggregator creates a DailyAggregator. locks may be nil, in which
// case runs are not serialized across deployments.
func NewDailyAggregator(
	ticks domain.TickStore,
	snaps domain.SnapshotStore,
	resolver *NameResolver,
	locks domain.LockManager,
	metrics Metrics,
	logger *slog.Logger,
) *DailyAggregator {
	return &DailyAggregator{
		ticks:    ticks,
		snaps:    snaps,
		resolver: resolver,
		locks:    locks,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a single aggregation pass over every completed day that still
// has raw ticks, oldest first. Each day commits independently, so a failure
// mid-run leaves earlier days done and later days untouched for the next
// pass.
func (a *DailyAggregator) Run(ctx context.Context) error {
	if a.locks != nil {
		release, err := a.locks.Acquire(ctx, aggregateLockName, aggregateLockTTL)
		if err != nil {
			return fmt.Errorf("acquiring aggregation lock: %w", err)
		}
		defer release()
	}

	today := domain.DayOf(a.now().UTC())

	days, err := a.ticks.DistinctDaysBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("listing completed days: %w", err)
	}

	if len(days) == 0 {
		a.logger.Info("no completed days to aggregate")
		return nil
	}

	a.logger.Info("starting aggregation run",
		slog.Int("days", len(days)),
		slog.Time("first", days[0]),
		slog.Time("last", days[len(days)-1]),
	)

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("aggregation run cancelled: %w", err)
		}
		if err := a.aggregateDay(ctx, day); err != nil {
			return fmt.Errorf("aggregating day %s: %w", day.Format("2006-01-02"), err)
		}
	}

	a.logger.Info("aggregation run complete", slog.Int("days", len(days)))
	return nil
}

// aggregateDay builds one snapshot per item seen on the given day and commits
// the snapshots together with the tick purge in one transaction.
func (a *DailyAggregator) aggregateDay(ctx context.Context, day time.Time) error {
	start := time.Now()

	ticks, err := a.ticks.ListForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("listing ticks: %w", err)
	}
	if len(ticks) == 0 {
		return nil
	}

	snaps := buildSnapshots(day, ticks)

	itemIDs := make([]int64, len(snaps))
	for i, s := range snaps {
		itemIDs[i] = s.ItemID
	}
	if err := a.resolver.EnsureItems(ctx, itemIDs); err != nil {
		return fmt.Errorf("resolving item names: %w", err)
	}

	purged, err := a.snaps.CommitDay(ctx, day, snaps)
	if err != nil {
		return fmt.Errorf("committing snapshots: %w", err)
	}

	elapsed := time.Since(start)
	a.metrics.RecordDayAggregated(len(snaps), purged, elapsed)
	a.logger.Info("aggregated day",
		slog.Time("day", day),
		slog.Int("ticks", len(ticks)),
		slog.Int("snapshots", len(snaps)),
		slog.Int64("purged", purged),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// RunCron runs the aggregator on a cron schedule until the context is
// cancelled. The schedule is the standard 5-field format:
// "minute hour day-of-month month day-of-week".
func (a *DailyAggregator) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("aggregator cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("aggregator waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("aggregator cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("aggregation run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// buildSnapshots groups the day's ticks by item and synthesizes one snapshot
// per item. Ticks arrive ordered by (item_id, ts, id), so each item's ticks
// form one contiguous run already in replay order.
func buildSnapshots(day time.Time, ticks []domain.Tick) []domain.DailySnapshot {
	var snaps []domain.DailySnapshot

	flush := func(group []domain.Tick) {
		w, ok := aggregate.Window(group)
		if !ok {
			return
		}
		f := aggregate.InferFlow(group)
		snaps = append(snaps, aggregate.Synthesize(group[0].ItemID, day, w, f))
	}

	start := 0
	for i := 1; i <= len(ticks); i++ {
		if i == len(ticks) || ticks[i].ItemID != ticks[start].ItemID {
			flush(ticks[start:i])
			start = i
		}
	}

	return snaps
}

// Package instrumentation exposes Prometheus metrics for the ingestion and
// aggregation pipelines.
package instrumentation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the process-wide metric instruments.
type Recorder struct {
	ticksIngested     prometheus.Counter
	daysAggregated    prometheus.Counter
	snapshotsWritten  prometheus.Counter
	ticksPurged       prometheus.Counter
	resolveFailures   prometheus.Counter
	aggregateDuration prometheus.Histogram
}

// New registers the instruments on the default registry and returns a
// Recorder. Call it once per process.
func New() *Recorder {
	return &Recorder{
		ticksIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tpbot_ticks_ingested_total",
			Help: "Total order-book ticks written to the database",
		}),
		daysAggregated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tpbot_days_aggregated_total",
			Help: "Total calendar days collapsed into snapshots",
		}),
		snapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tpbot_snapshots_written_total",
			Help: "Total daily snapshot rows upserted",
		}),
		ticksPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tpbot_ticks_purged_total",
			Help: "Total raw ticks deleted after snapshot commit",
		}),
		resolveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tpbot_name_resolve_failures_total",
			Help: "Item name lookups that fell back to a placeholder",
		}),
		aggregateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tpbot_day_aggregation_duration_seconds",
			Help:    "Wall time spent aggregating one calendar day",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordTicksIngested adds n to the ingested tick counter.
func (r *Recorder) RecordTicksIngested(n int) {
	r.ticksIngested.Add(float64(n))
}

// RecordDayAggregated records one completed day with its snapshot count,
// purge count, and wall time.
func (r *Recorder) RecordDayAggregated(snapshots int, purged int64, elapsed time.Duration) {
	r.daysAggregated.Inc()
	r.snapshotsWritten.Add(float64(snapshots))
	r.ticksPurged.Add(float64(purged))
	r.aggregateDuration.Observe(elapsed.Seconds())
}

// RecordResolveFailure records one placeholder fallback.
func (r *Recorder) RecordResolveFailure() {
	r.resolveFailures.Inc()
}

// Serve runs the /metrics HTTP listener until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

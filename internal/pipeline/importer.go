package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// BatchSource reads and removes shuttle batch objects.
type BatchSource interface {
	domain.BlobReader
	domain.BlobDeleter
}

// Importer drains exported tick batches from the bucket into the database.
// An object is deleted only after its ticks are safely inserted, so a crash
// mid-run leaves the remaining batches for the next run. Re-importing a batch
// is harmless because tick inserts skip duplicates.
type Importer struct {
	source  BatchSource
	ticks   domain.TickStore
	metrics Metrics
	logger  *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(source BatchSource, ticks domain.TickStore, metrics Metrics, logger *slog.Logger) *Importer {
	return &Importer{
		source:  source,
		ticks:   ticks,
		metrics: metrics,
		logger:  logger,
	}
}

// Run imports every batch under the given prefix. Malformed objects are
// logged and left in place for inspection; store failures abort the run.
func (im *Importer) Run(ctx context.Context, prefix string) error {
	infos, err := im.source.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("listing batches under %q: %w", prefix, err)
	}
	if len(infos) == 0 {
		im.logger.Info("no tick batches to import", slog.String("prefix", prefix))
		return nil
	}

	im.logger.Info("importing tick batches",
		slog.String("prefix", prefix),
		slog.Int("batches", len(infos)),
	)

	imported := 0
	total := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled: %w", err)
		}

		n, err := im.importBatch(ctx, info.Key)
		if err != nil {
			var malformed *malformedBatchError
			if errors.As(err, &malformed) {
				im.logger.Error("skipping malformed tick batch",
					slog.String("key", info.Key),
					slog.String("error", malformed.Error()),
				)
				continue
			}
			return fmt.Errorf("importing batch %s: %w", info.Key, err)
		}

		imported++
		total += n
	}

	im.logger.Info("import complete",
		slog.Int("batches", imported),
		slog.Int("ticks", total),
	)
	return nil
}

// importBatch downloads, decodes, inserts, and finally deletes one batch
// object, returning the number of ticks it carried.
func (im *Importer) importBatch(ctx context.Context, key string) (int, error) {
	body, err := im.source.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("downloading: %w", err)
	}
	defer body.Close()

	var records []TickRecord
	if err := json.NewDecoder(body).Decode(&records); err != nil {
		return 0, &malformedBatchError{key: key, err: err}
	}

	if len(records) > 0 {
		ticks := make([]domain.Tick, len(records))
		for i, r := range records {
			ticks[i] = r.Tick()
		}
		if err := im.ticks.InsertBatch(ctx, ticks); err != nil {
			return 0, fmt.Errorf("inserting %d ticks: %w", len(ticks), err)
		}
		im.metrics.RecordTicksIngested(len(ticks))
	}

	if err := im.source.Delete(ctx, key); err != nil {
		return 0, fmt.Errorf("deleting consumed batch: %w", err)
	}

	im.logger.Info("imported tick batch",
		slog.String("key", key),
		slog.Int("ticks", len(records)),
	)
	return len(records), nil
}

// malformedBatchError marks an object whose payload did not decode; the
// importer skips it instead of aborting the run.
type malformedBatchError struct {
	key string
	err error
}

func (e *malformedBatchError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.key, e.err)
}

func (e *malformedBatchError) Unwrap() error { return e.err }

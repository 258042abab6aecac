package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
)

// largeBatchBytes is the encoded size above which the exporter switches to a
// multipart upload.
const largeBatchBytes = 4 << 20

// TickRecord is the JSON wire form of one tick in a shuttle batch. The
// fetch-only host exports these; the database host imports them.
type TickRecord struct {
	ItemID       int64     `json:"item_id"`
	Ts           time.Time `json:"ts"`
	BuyPrice     int64     `json:"buy_price"`
	BuyQuantity  int64     `json:"buy_quantity"`
	SellPrice    int64     `json:"sell_price"`
	SellQuantity int64     `json:"sell_quantity"`
}

// Tick converts the wire record to the domain form.
func (r TickRecord) Tick() domain.Tick {
	return domain.Tick{
		ItemID:       r.ItemID,
		Ts:           r.Ts.UTC(),
		BuyPrice:     r.BuyPrice,
		BuyQuantity:  r.BuyQuantity,
		SellPrice:    r.SellPrice,
		SellQuantity: r.SellQuantity,
	}
}

// PriceFetcher retrieves the full commerce price feed from the upstream API.
type PriceFetcher interface {
	ListPriceIDs(ctx context.Context) ([]int64, error)
	GetPrices(ctx context.Context, ids []int64) ([]gw2.Price, error)
}

// batchUploader is the slice of the blob writer the exporter needs.
type batchUploader interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	PutLarge(ctx context.Context, key string, data io.Reader, partSize int64) error
}

// Ingestor pulls one full-market price sweep per run and either writes the
// ticks straight to the database or exports them as a JSON batch for a
// database host to import later.
type Ingestor struct {
	fetcher PriceFetcher
	ticks   domain.TickStore
	blob    batchUploader
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewIngestor creates an Ingestor. ticks may be nil on fetch-only hosts that
// only export; blob may be nil on hosts that only ingest locally.
func NewIngestor(fetcher PriceFetcher, ticks domain.TickStore, blob batchUploader, metrics Metrics, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		fetcher: fetcher,
		ticks:   ticks,
		blob:    blob,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes a single sweep and writes the resulting ticks to the store.
func (in *Ingestor) Run(ctx context.Context) error {
	ticks, err := in.sweep(ctx)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		in.logger.Warn("price sweep returned no listings")
		return nil
	}

	if err := in.ticks.InsertBatch(ctx, ticks); err != nil {
		return fmt.Errorf("inserting %d ticks: %w", len(ticks), err)
	}

	in.metrics.RecordTicksIngested(len(ticks))
	in.logger.Info("ingested price sweep", slog.Int("ticks", len(ticks)))
	return nil
}

// Export executes a single sweep and uploads it as one JSON batch object
// under ticks/<day>/<uuid>.json instead of touching the database.
func (in *Ingestor) Export(ctx context.Context) error {
	ticks, err := in.sweep(ctx)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		in.logger.Warn("price sweep returned no listings")
		return nil
	}

	records := make([]TickRecord, len(ticks))
	for i, t := range ticks {
		records[i] = TickRecord{
			ItemID:       t.ItemID,
			Ts:           t.Ts,
			BuyPrice:     t.BuyPrice,
			BuyQuantity:  t.BuyQuantity,
			SellPrice:    t.SellPrice,
			SellQuantity: t.SellQuantity,
		}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding tick batch: %w", err)
	}

	key := fmt.Sprintf("ticks/%s/%s.json", in.now().UTC().Format("2006-01-02"), uuid.NewString())

	if len(payload) > largeBatchBytes {
		err = in.blob.PutLarge(ctx, key, bytes.NewReader(payload), 0)
	} else {
		err = in.blob.Put(ctx, key, bytes.NewReader(payload), "application/json")
	}
	if err != nil {
		return fmt.Errorf("uploading tick batch %s: %w", key, err)
	}

	in.logger.Info("exported tick batch",
		slog.String("key", key),
		slog.Int("ticks", len(records)),
		slog.Int("bytes", len(payload)),
	)
	return nil
}

// RunLoop runs the ingestor on a repeating interval until the context is
// cancelled.
func (in *Ingestor) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := in.Run(ctx); err != nil {
		in.logger.Error("price sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingestor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := in.Run(ctx); err != nil {
				in.logger.Error("price sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep fetches the full price feed and stamps every listing with a single
// observation timestamp, so one sweep contributes at most one tick per item.
func (in *Ingestor) sweep(ctx context.Context) ([]domain.Tick, error) {
	ids, err := in.fetcher.ListPriceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tradable items: %w", err)
	}

	prices, err := in.fetcher.GetPrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching prices for %d items: %w", len(ids), err)
	}

	ts := in.now().UTC().Truncate(time.Second)

	ticks := make([]domain.Tick, 0, len(prices))
	for _, p := range prices {
		ticks = append(ticks, domain.Tick{
			ItemID:       p.ID,
			Ts:           ts,
			BuyPrice:     p.Buys.UnitPrice,
			BuyQuantity:  p.Buys.Quantity,
			SellPrice:    p.Sells.UnitPrice,
			SellQuantity: p.Sells.Quantity,
		})
	}
	return ticks, nil
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// fakeBatchSource is an in-memory bucket keyed by object name.
type fakeBatchSource struct {
	objects map[string][]byte
}

func (s *fakeBatchSource) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeBatchSource) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, domain.BlobInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *fakeBatchSource) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func encodeBatch(t *testing.T, records []TickRecord) []byte {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	return data
}

func TestImporterDrainsBucket(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeBatchSource{objects: map[string][]byte{
		"ticks/2025-06-01/a.json": encodeBatch(t, []TickRecord{
			{ItemID: 7, Ts: ts, BuyPrice: 100, BuyQuantity: 50, SellPrice: 110, SellQuantity: 40},
		}),
		"ticks/2025-06-01/b.json": encodeBatch(t, []TickRecord{
			{ItemID: 7, Ts: ts.Add(5 * time.Minute), BuyPrice: 105, BuyQuantity: 50, SellPrice: 112, SellQuantity: 30},
		}),
	}}
	ticks := &fakeTickStore{}

	im := NewImporter(source, ticks, NopMetrics{}, testLogger())
	require.NoError(t, im.Run(ctx, "ticks/"))

	n, _ := ticks.CountForDay(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(2), n)
	assert.Empty(t, source.objects)
}

func TestImporterSkipsMalformedBatch(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeBatchSource{objects: map[string][]byte{
		"ticks/2025-06-01/bad.json": []byte("{not json"),
		"ticks/2025-06-01/good.json": encodeBatch(t, []TickRecord{
			{ItemID: 7, Ts: ts, BuyPrice: 100, BuyQuantity: 50, SellPrice: 110, SellQuantity: 40},
		}),
	}}
	ticks := &fakeTickStore{}

	im := NewImporter(source, ticks, NopMetrics{}, testLogger())
	require.NoError(t, im.Run(ctx, "ticks/"))

	// The good batch lands and is deleted; the malformed one stays put.
	n, _ := ticks.CountForDay(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(1), n)
	assert.Contains(t, source.objects, "ticks/2025-06-01/bad.json")
	assert.NotContains(t, source.objects, "ticks/2025-06-01/good.json")
}

func TestImporterReimportIsHarmless(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := encodeBatch(t, []TickRecord{
		{ItemID: 7, Ts: ts, BuyPrice: 100, BuyQuantity: 50, SellPrice: 110, SellQuantity: 40},
	})

	ticks := &fakeTickStore{}

	source := &fakeBatchSource{objects: map[string][]byte{"ticks/x.json": batch}}
	im := NewImporter(source, ticks, NopMetrics{}, testLogger())
	require.NoError(t, im.Run(ctx, "ticks/"))

	// The same batch arriving again, e.g. after a crashed delete, inserts
	// nothing new.
	source.objects["ticks/x.json"] = batch
	require.NoError(t, im.Run(ctx, "ticks/"))

	n, _ := ticks.CountForDay(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(1), n)
}

func TestImporterEmptyPrefix(t *testing.T) {
	source := &fakeBatchSource{objects: map[string][]byte{}}
	im := NewImporter(source, &fakeTickStore{}, NopMetrics{}, testLogger())
	require.NoError(t, im.Run(context.Background(), "ticks/"))
}

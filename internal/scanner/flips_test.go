package scanner

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

type fakeSnapshotStore struct {
	day   time.Time
	snaps []domain.DailySnapshot
}

func (s *fakeSnapshotStore) CommitDay(context.Context, time.Time, []domain.DailySnapshot) (int64, error) {
	panic("not used")
}

func (s *fakeSnapshotStore) GetByItemDay(_ context.Context, itemID int64, _ time.Time) (domain.DailySnapshot, error) {
	for _, snap := range s.snaps {
		if snap.ItemID == itemID {
			return snap, nil
		}
	}
	return domain.DailySnapshot{}, domain.ErrNotFound
}

func (s *fakeSnapshotStore) LatestDay(context.Context) (time.Time, error) {
	if s.day.IsZero() {
		return time.Time{}, domain.ErrNotFound
	}
	return s.day, nil
}

func (s *fakeSnapshotStore) ListForDay(_ context.Context, day time.Time) ([]domain.DailySnapshot, error) {
	if !day.Equal(s.day) {
		return nil, nil
	}
	return s.snaps, nil
}

type fakeTickStore struct {
	ticks []domain.Tick
}

func (s *fakeTickStore) InsertBatch(context.Context, []domain.Tick) error { panic("not used") }

func (s *fakeTickStore) ListForDay(_ context.Context, day time.Time) ([]domain.Tick, error) {
	var out []domain.Tick
	for _, t := range s.ticks {
		if t.Day().Equal(day) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].Ts.Before(out[j].Ts)
	})
	return out, nil
}

func (s *fakeTickStore) DistinctDaysBefore(context.Context, time.Time) ([]time.Time, error) {
	panic("not used")
}

func (s *fakeTickStore) CountForDay(context.Context, time.Time) (int64, error) { panic("not used") }

type fakeItemStore struct {
	names map[int64]string
}

func (s *fakeItemStore) UpsertBatch(context.Context, []domain.Item) error { panic("not used") }

func (s *fakeItemStore) FilterMissing(context.Context, []int64) ([]int64, error) {
	panic("not used")
}

func (s *fakeItemStore) GetNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// flipSnap builds a snapshot that passes every default filter unless a field
// is overridden afterwards.
func flipSnap(itemID int64, day time.Time) domain.DailySnapshot {
	return domain.DailySnapshot{
		ItemID:            itemID,
		Day:               day,
		AvgBuyPrice:       100,
		AvgSellPrice:      150, // net gain 27, spread 50%
		TotalBuyQtyListed: 1500,
		ExecBuyQty:        2000,
		ExecSellQty:       1200, // queue ratio 1.25
	}
}

func newTestScanner(snaps *fakeSnapshotStore, ticks *fakeTickStore, items *fakeItemStore, today time.Time) *Scanner {
	s := New(snaps, ticks, items, DefaultThresholds(), slog.New(slog.DiscardHandler))
	s.now = func() time.Time { return today.Add(9 * time.Hour) }
	return s
}

func TestScanFindsCandidate(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	today := day.AddDate(0, 0, 1)

	snaps := &fakeSnapshotStore{day: day, snaps: []domain.DailySnapshot{flipSnap(7, day)}}
	ticks := &fakeTickStore{}
	items := &fakeItemStore{names: map[int64]string{7: "Mithril Ore"}}

	got, err := newTestScanner(snaps, ticks, items, today).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, int64(7), c.ItemID)
	assert.Equal(t, "Mithril Ore", c.Name)
	// int(150*0.85) - 100
	assert.Equal(t, int64(27), c.NetGain)
	assert.InDelta(t, 50.0, c.SpreadPct, 1e-9)
	assert.InDelta(t, 1.25, c.BuyQueueRatio, 1e-9)
}

func TestScanAppliesThresholds(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	today := day.AddDate(0, 0, 1)

	slowSell := flipSnap(2, day)
	slowSell.ExecBuyQty = 500 // below MinSellSpeed

	longQueue := flipSnap(3, day)
	longQueue.TotalBuyQtyListed = 10000 // queue ratio 8.3

	thinSpread := flipSnap(4, day)
	thinSpread.AvgSellPrice = 105 // spread 5%, net gain negative

	noSells := flipSnap(5, day)
	noSells.ExecSellQty = 0 // queue ratio undefined

	snaps := &fakeSnapshotStore{day: day, snaps: []domain.DailySnapshot{
		flipSnap(1, day), slowSell, longQueue, thinSpread, noSells,
	}}
	ticks := &fakeTickStore{}
	items := &fakeItemStore{names: map[int64]string{}}

	got, err := newTestScanner(snaps, ticks, items, today).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ItemID)
	// No catalog row yet, so the placeholder shows.
	assert.Equal(t, "auto_1", got[0].Name)
}

func TestScanPrefersTodayFlow(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	today := day.AddDate(0, 0, 1)

	// Yesterday's snapshot alone passes, but today the item stopped moving.
	snap := flipSnap(7, day)
	snaps := &fakeSnapshotStore{day: day, snaps: []domain.DailySnapshot{snap}}

	at := func(minute int, buyQty, sellQty int64) domain.Tick {
		return domain.Tick{
			ItemID:       7,
			Ts:           today.Add(time.Duration(minute) * time.Minute),
			BuyPrice:     100,
			BuyQuantity:  buyQty,
			SellPrice:    150,
			SellQuantity: sellQty,
		}
	}
	// Listed quantities only grow, so inferred executions today are zero.
	ticks := &fakeTickStore{ticks: []domain.Tick{at(0, 10, 10), at(5, 20, 20)}}
	items := &fakeItemStore{names: map[int64]string{}}

	got, err := newTestScanner(snaps, ticks, items, today).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanNoSnapshots(t *testing.T) {
	snaps := &fakeSnapshotStore{}
	ticks := &fakeTickStore{}
	items := &fakeItemStore{names: map[int64]string{}}

	got, err := newTestScanner(snaps, ticks, items, time.Now().UTC()).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatCoins(t *testing.T) {
	assert.Equal(t, "12g 34s 56c", FormatCoins(123456))
	assert.Equal(t, "0g 00s 27c", FormatCoins(27))
	assert.Equal(t, "0g 05s 00c", FormatCoins(500))
	assert.Equal(t, "-1g 00s 01c", FormatCoins(-10001))
}

func TestRender(t *testing.T) {
	cand := Candidate{
		ItemID:        7,
		Name:          "Mithril Ore",
		AvgBuyPrice:   100,
		AvgSellPrice:  150,
		NetGain:       27,
		SpreadPct:     50,
		BuyQueueRatio: 1.25,
		ExecSellQty:   1200,
		ExecBuyQty:    2000,
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []Candidate{cand}))
	assert.Contains(t, buf.String(), "Mithril Ore")
	assert.Contains(t, buf.String(), "0g 00s 27c")

	buf.Reset()
	require.NoError(t, Render(&buf, nil))
	assert.Contains(t, buf.String(), "no fast-flip candidates")
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tpbot/internal/aggregate"
	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeTickStore struct {
	ticks  []domain.Tick
	nextID int64
}

func (s *fakeTickStore) InsertBatch(_ context.Context, ticks []domain.Tick) error {
	for _, t := range ticks {
		dup := false
		for _, existing := range s.ticks {
			if existing.ItemID == t.ItemID && existing.Ts.Equal(t.Ts) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.nextID++
		t.ID = s.nextID
		s.ticks = append(s.ticks, t)
	}
	return nil
}

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
		if !out[i].Ts.Equal(out[j].Ts) {
			return out[i].Ts.Before(out[j].Ts)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeTickStore) DistinctDaysBefore(_ context.Context, before time.Time) ([]time.Time, error) {
	seen := map[time.Time]bool{}
	for _, t := range s.ticks {
		d := t.Day()
		if d.Before(before) {
			seen[d] = true
		}
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (s *fakeTickStore) CountForDay(_ context.Context, day time.Time) (int64, error) {
	var n int64
	for _, t := range s.ticks {
		if t.Day().Equal(day) {
			n++
		}
	}
	return n, nil
}

func (s *fakeTickStore) deleteDay(day time.Time) int64 {
	kept := s.ticks[:0]
	var purged int64
	for _, t := range s.ticks {
		if t.Day().Equal(day) {
			purged++
			continue
		}
		kept = append(kept, t)
	}
	s.ticks = kept
	return purged
}

// fakeSnapshotStore commits against a fakeTickStore so the upsert and the
// purge stay one unit, like the real transaction.
type fakeSnapshotStore struct {
	ticks     *fakeTickStore
	byDay     map[time.Time][]domain.DailySnapshot
	commitErr error
}

func newFakeSnapshotStore(ticks *fakeTickStore) *fakeSnapshotStore {
	return &fakeSnapshotStore{
		ticks: ticks,
		byDay: map[time.Time][]domain.DailySnapshot{},
	}
}

func (s *fakeSnapshotStore) CommitDay(_ context.Context, day time.Time, snaps []domain.DailySnapshot) (int64, error) {
	if s.commitErr != nil {
		return 0, s.commitErr
	}
	s.byDay[day] = append([]domain.DailySnapshot(nil), snaps...)
	return s.ticks.deleteDay(day), nil
}

func (s *fakeSnapshotStore) GetByItemDay(_ context.Context, itemID int64, day time.Time) (domain.DailySnapshot, error) {
	for _, snap := range s.byDay[day] {
		if snap.ItemID == itemID {
			return snap, nil
		}
	}
	return domain.DailySnapshot{}, domain.ErrNotFound
}

func (s *fakeSnapshotStore) LatestDay(_ context.Context) (time.Time, error) {
	var latest time.Time
	for d := range s.byDay {
		if d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return time.Time{}, domain.ErrNotFound
	}
	return latest, nil
}

func (s *fakeSnapshotStore) ListForDay(_ context.Context, day time.Time) ([]domain.DailySnapshot, error) {
	snaps := append([]domain.DailySnapshot(nil), s.byDay[day]...)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ItemID < snaps[j].ItemID })
	return snaps, nil
}

type fakeItemStore struct {
	names map[int64]string
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{names: map[int64]string{}}
}

func (s *fakeItemStore) UpsertBatch(_ context.Context, items []domain.Item) error {
	for _, it := range items {
		s.names[it.ID] = it.Name
	}
	return nil
}

func (s *fakeItemStore) FilterMissing(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := s.names[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
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

// fakeItemFetcher serves names from a fixed map and errors on unknown ids.
type fakeItemFetcher struct {
	names map[int64]string
	err   error
}

func (f *fakeItemFetcher) GetItem(_ context.Context, id int64) (gw2.ItemInfo, error) {
	if f.err != nil {
		return gw2.ItemInfo{}, f.err
	}
	name, ok := f.names[id]
	if !ok {
		return gw2.ItemInfo{}, domain.ErrNotFound
	}
	return gw2.ItemInfo{ID: id, Name: name}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// dayTick places a tick at the given UTC day offset and minute past noon.
func dayTick(item int64, day time.Time, minute int, buy, buyQty, sell, sellQty int64) domain.Tick {
	return domain.Tick{
		ItemID:       item,
		Ts:           day.Add(12*time.Hour + time.Duration(minute)*time.Minute),
		BuyPrice:     buy,
		BuyQuantity:  buyQty,
		SellPrice:    sell,
		SellQuantity: sellQty,
	}
}

func newTestAggregator(ticks *fakeTickStore, snaps *fakeSnapshotStore, items *fakeItemStore, fetcher ItemFetcher, today time.Time) *DailyAggregator {
	resolver := NewNameResolver(items, nil, fetcher, NopMetrics{}, testLogger(), 4)
	agg := NewDailyAggregator(ticks, snaps, resolver, nil, NopMetrics{}, testLogger())
	agg.now = func() time.Time { return today.Add(6 * time.Hour) }
	return agg
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDailyAggregatorSkipsCurrentDay(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	today := day1.AddDate(0, 0, 2)

	ticks := &fakeTickStore{}
	require.NoError(t, ticks.InsertBatch(ctx, []domain.Tick{
		dayTick(7, day1, 0, 100, 50, 110, 40),
		dayTick(7, day1, 10, 105, 50, 112, 30),
		dayTick(7, day2, 0, 106, 50, 113, 30),
		dayTick(7, today, 0, 107, 50, 114, 30),
	}))

	snaps := newFakeSnapshotStore(ticks)
	items := newFakeItemStore()
	fetcher := &fakeItemFetcher{names: map[int64]string{7: "Mithril Ore"}}

	agg := newTestAggregator(ticks, snaps, items, fetcher, today)
	require.NoError(t, agg.Run(ctx))

	// Both completed days condensed, their ticks purged.
	assert.Len(t, snaps.byDay[day1], 1)
	assert.Len(t, snaps.byDay[day2], 1)
	n1, _ := ticks.CountForDay(ctx, day1)
	n2, _ := ticks.CountForDay(ctx, day2)
	assert.Zero(t, n1)
	assert.Zero(t, n2)

	// The current day still accumulates.
	nToday, _ := ticks.CountForDay(ctx, today)
	assert.Equal(t, int64(1), nToday)
	assert.Empty(t, snaps.byDay[today])

	// Item row resolved from the upstream name.
	assert.Equal(t, "Mithril Ore", items.names[7])

	// A second pass finds nothing left to do and changes nothing.
	require.NoError(t, agg.Run(ctx))
	assert.Len(t, snaps.byDay[day1], 1)
	nToday, _ = ticks.CountForDay(ctx, today)
	assert.Equal(t, int64(1), nToday)
}

func TestDailyAggregatorPurgeOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	today := day.AddDate(0, 0, 1)

	ticks := &fakeTickStore{}
	require.NoError(t, ticks.InsertBatch(ctx, []domain.Tick{
		dayTick(7, day, 0, 100, 50, 110, 40),
		dayTick(7, day, 10, 105, 50, 112, 30),
	}))

	snaps := newFakeSnapshotStore(ticks)
	snaps.commitErr = errors.New("connection reset")
	items := newFakeItemStore()
	fetcher := &fakeItemFetcher{names: map[int64]string{7: "Mithril Ore"}}

	agg := newTestAggregator(ticks, snaps, items, fetcher, today)
	require.Error(t, agg.Run(ctx))

	// Failed commit leaves the raw ticks untouched.
	n, _ := ticks.CountForDay(ctx, day)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, snaps.byDay[day])

	// The retry consumes the same ticks and produces the exact row a direct
	// synthesis of them would.
	snaps.commitErr = nil
	require.NoError(t, agg.Run(ctx))

	rows, err := ticks.ListForDay(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, rows)

	got, err := snaps.GetByItemDay(ctx, 7, day)
	require.NoError(t, err)

	want := func() domain.DailySnapshot {
		src := []domain.Tick{
			dayTick(7, day, 0, 100, 50, 110, 40),
			dayTick(7, day, 10, 105, 50, 112, 30),
		}
		w, ok := aggregate.Window(src)
		require.True(t, ok)
		return aggregate.Synthesize(7, day, w, aggregate.InferFlow(src))
	}()
	assert.Equal(t, want, got)
}

func TestDailyAggregatorGroupsPerItem(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	today := day.AddDate(0, 0, 1)

	ticks := &fakeTickStore{}
	require.NoError(t, ticks.InsertBatch(ctx, []domain.Tick{
		dayTick(2, day, 0, 10, 5, 20, 5),
		dayTick(9, day, 0, 300, 1, 400, 1),
		dayTick(2, day, 5, 11, 5, 21, 5),
	}))

	snaps := newFakeSnapshotStore(ticks)
	items := newFakeItemStore()
	fetcher := &fakeItemFetcher{names: map[int64]string{2: "Copper Ore", 9: "Iron Ingot"}}

	agg := newTestAggregator(ticks, snaps, items, fetcher, today)
	require.NoError(t, agg.Run(ctx))

	rows, err := snaps.ListForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ItemID)
	assert.Equal(t, int64(11), rows[0].CloseBuyPrice)
	assert.Equal(t, int64(9), rows[1].ItemID)
	assert.Equal(t, int64(300), rows[1].CloseBuyPrice)
}

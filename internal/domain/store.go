package domain

import (
	"context"
	"time"
)

// TickStore persists raw order-book ticks.
type TickStore interface {
	// InsertBatch writes ticks, silently skipping duplicates on
	// (item_id, ts).
	InsertBatch(ctx context.Context, ticks []Tick) error

	// ListForDay returns every tick of the given UTC calendar day ordered by
	// (item_id, ts, id), so per-item subsequences replay in timestamp order
	// with a stable tie-break.
	ListForDay(ctx context.Context, day time.Time) ([]Tick, error)

	// DistinctDaysBefore returns the UTC calendar days, ascending, that have
	// at least one tick and are strictly before the given day.
	DistinctDaysBefore(ctx context.Context, before time.Time) ([]time.Time, error)

	// CountForDay reports how many ticks exist for the given day.
	CountForDay(ctx context.Context, day time.Time) (int64, error)
}

// SnapshotStore persists one DailySnapshot row per (item, day).
type SnapshotStore interface {
	// CommitDay upserts the day's snapshot rows and purges the day's raw
	// ticks in a single transaction, so the snapshot write and the purge
	// succeed or fail as one unit. It returns the number of ticks purged.
	CommitDay(ctx context.Context, day time.Time, snaps []DailySnapshot) (int64, error)

	// GetByItemDay returns the snapshot for one item and day, or ErrNotFound.
	GetByItemDay(ctx context.Context, itemID int64, day time.Time) (DailySnapshot, error)

	// LatestDay returns the most recent day that has snapshots, or
	// ErrNotFound when the table is empty.
	LatestDay(ctx context.Context) (time.Time, error)

	// ListForDay returns all snapshots of the given day ordered by item id.
	ListForDay(ctx context.Context, day time.Time) ([]DailySnapshot, error)
}

// ItemStore persists the item id -> name catalog.
type ItemStore interface {
	UpsertBatch(ctx context.Context, items []Item) error

	// FilterMissing returns the subset of ids that have no item row yet.
	FilterMissing(ctx context.Context, ids []int64) ([]int64, error)

	// GetNames returns the display names for the given ids. Ids without a
	// row are simply absent from the result map.
	GetNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

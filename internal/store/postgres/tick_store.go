package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a new TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

const tickSelectCols = `id, item_id, ts, buy_price, buy_quantity, sell_price, sell_quantity`

func scanTickRows(rows pgx.Rows) ([]domain.Tick, error) {
	var ticks []domain.Tick
	for rows.Next() {
		var t domain.Tick
		if err := rows.Scan(
			&t.ID, &t.ItemID, &t.Ts,
			&t.BuyPrice, &t.BuyQuantity, &t.SellPrice, &t.SellQuantity,
		); err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// InsertBatch inserts ticks efficiently using pgx Batch. Duplicates on
// (item_id, ts) are silently skipped via ON CONFLICT DO NOTHING, which makes
// re-importing the same batch harmless.
func (s *TickStore) InsertBatch(ctx context.Context, ticks []domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO ticks (item_id, ts, buy_price, buy_quantity, sell_price, sell_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, ts) DO NOTHING`

	for _, t := range ticks {
		batch.Queue(query,
			t.ItemID, t.Ts,
			t.BuyPrice, t.BuyQuantity, t.SellPrice, t.SellQuantity,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range ticks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert tick batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListForDay returns every tick whose UTC calendar day equals day, ordered by
// (item_id, ts, id). The trailing id term makes the order stable for ticks
// that share a timestamp.
func (s *TickStore) ListForDay(ctx context.Context, day time.Time) ([]domain.Tick, error) {
	query := `SELECT ` + tickSelectCols + ` FROM ticks
		WHERE (ts AT TIME ZONE 'UTC')::date = $1
		ORDER BY item_id, ts, id`

	rows, err := s.pool.Query(ctx, query, domain.DayOf(day))
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks for day: %w", err)
	}
	defer rows.Close()

	ticks, err := scanTickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ticks for day: %w", err)
	}
	return ticks, nil
}

// DistinctDaysBefore returns the UTC calendar days that hold at least one
// tick and fall strictly before the given day, ascending.
func (s *TickStore) DistinctDaysBefore(ctx context.Context, before time.Time) ([]time.Time, error) {
	const query = `SELECT DISTINCT (ts AT TIME ZONE 'UTC')::date AS day FROM ticks
		WHERE (ts AT TIME ZONE 'UTC')::date < $1
		ORDER BY day`

	rows, err := s.pool.Query(ctx, query, domain.DayOf(before))
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct tick days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("postgres: scan tick day: %w", err)
		}
		days = append(days, domain.DayOf(d))
	}
	return days, rows.Err()
}

// CountForDay reports how many ticks exist for the given UTC calendar day.
func (s *TickStore) CountForDay(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticks WHERE (ts AT TIME ZONE 'UTC')::date = $1`,
		domain.DayOf(day),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count ticks for day: %w", err)
	}
	return count, nil
}

// deleteForDayTx removes the day's ticks inside the caller's transaction.
// Only SnapshotStore.CommitDay calls this, keeping purge and snapshot commit
// in one failure unit.
func deleteForDayTx(ctx context.Context, tx pgx.Tx, day time.Time) (int64, error) {
	tag, err := tx.Exec(ctx,
		`DELETE FROM ticks WHERE (ts AT TIME ZONE 'UTC')::date = $1`,
		domain.DayOf(day),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete ticks for day: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotUpsert = `
	INSERT INTO snapshots (
		item_id, day,
		open_buy_price, open_sell_price, close_buy_price, close_sell_price,
		min_buy_price, max_buy_price, min_sell_price, max_sell_price,
		avg_buy_price, avg_sell_price, median_buy_price, median_sell_price,
		std_buy_price, std_sell_price,
		avg_spread, min_spread, max_spread, pct_spread,
		coef_var_buy, true_range, delta_buy_price, delta_sell_price, atr_like,
		vwap_buy, vwap_sell,
		total_buy_qty_listed, total_sell_qty_listed,
		exec_buy_qty, exec_sell_qty, imbalance_qty,
		sell_through_rate, buy_liquidity_ratio, sell_liquidity_ratio,
		pct_change_buy, pct_change_sell
	) VALUES (
		$1, $2,
		$3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14,
		$15, $16,
		$17, $18, $19, $20,
		$21, $22, $23, $24, $25,
		$26, $27,
		$28, $29,
		$30, $31, $32,
		$33, $34, $35,
		$36, $37
	)
	ON CONFLICT (item_id, day) DO UPDATE SET
		open_buy_price = EXCLUDED.open_buy_price,
		open_sell_price = EXCLUDED.open_sell_price,
		close_buy_price = EXCLUDED.close_buy_price,
		close_sell_price = EXCLUDED.close_sell_price,
		min_buy_price = EXCLUDED.min_buy_price,
		max_buy_price = EXCLUDED.max_buy_price,
		min_sell_price = EXCLUDED.min_sell_price,
		max_sell_price = EXCLUDED.max_sell_price,
		avg_buy_price = EXCLUDED.avg_buy_price,
		avg_sell_price = EXCLUDED.avg_sell_price,
		median_buy_price = EXCLUDED.median_buy_price,
		median_sell_price = EXCLUDED.median_sell_price,
		std_buy_price = EXCLUDED.std_buy_price,
		std_sell_price = EXCLUDED.std_sell_price,
		avg_spread = EXCLUDED.avg_spread,
		min_spread = EXCLUDED.min_spread,
		max_spread = EXCLUDED.max_spread,
		pct_spread = EXCLUDED.pct_spread,
		coef_var_buy = EXCLUDED.coef_var_buy,
		true_range = EXCLUDED.true_range,
		delta_buy_price = EXCLUDED.delta_buy_price,
		delta_sell_price = EXCLUDED.delta_sell_price,
		atr_like = EXCLUDED.atr_like,
		vwap_buy = EXCLUDED.vwap_buy,
		vwap_sell = EXCLUDED.vwap_sell,
		total_buy_qty_listed = EXCLUDED.total_buy_qty_listed,
		total_sell_qty_listed = EXCLUDED.total_sell_qty_listed,
		exec_buy_qty = EXCLUDED.exec_buy_qty,
		exec_sell_qty = EXCLUDED.exec_sell_qty,
		imbalance_qty = EXCLUDED.imbalance_qty,
		sell_through_rate = EXCLUDED.sell_through_rate,
		buy_liquidity_ratio = EXCLUDED.buy_liquidity_ratio,
		sell_liquidity_ratio = EXCLUDED.sell_liquidity_ratio,
		pct_change_buy = EXCLUDED.pct_change_buy,
		pct_change_sell = EXCLUDED.pct_change_sell`

func upsertArgs(s domain.DailySnapshot) []any {
	return []any{
		s.ItemID, s.Day,
		s.OpenBuyPrice, s.OpenSellPrice, s.CloseBuyPrice, s.CloseSellPrice,
		s.MinBuyPrice, s.MaxBuyPrice, s.MinSellPrice, s.MaxSellPrice,
		s.AvgBuyPrice, s.AvgSellPrice, s.MedianBuyPrice, s.MedianSellPrice,
		s.StdBuyPrice, s.StdSellPrice,
		s.AvgSpread, s.MinSpread, s.MaxSpread, s.PctSpread,
		s.CoefVarBuy, s.TrueRange, s.DeltaBuyPrice, s.DeltaSellPrice, s.AtrLike,
		s.VwapBuy, s.VwapSell,
		s.TotalBuyQtyListed, s.TotalSellQtyListed,
		s.ExecBuyQty, s.ExecSellQty, s.ImbalanceQty,
		s.SellThroughRate, s.BuyLiquidityRatio, s.SellLiquidityRatio,
		s.PctChangeBuy, s.PctChangeSell,
	}
}

// CommitDay upserts the day's snapshot rows and purges the day's raw ticks
// inside one transaction. A failure anywhere rolls the whole day back, so a
// purged tick always has a durably committed snapshot and a failed snapshot
// write leaves the raw ticks in place for the next run.
func (s *SnapshotStore) CommitDay(ctx context.Context, day time.Time, snaps []domain.DailySnapshot) (int64, error) {
	day = domain.DayOf(day)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin day commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(snapshotUpsert, upsertArgs(snap)...)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("postgres: upsert snapshot %d for %s: %w",
				snaps[i].ItemID, day.Format("2006-01-02"), err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("postgres: close snapshot batch: %w", err)
	}

	purged, err := deleteForDayTx(ctx, tx, day)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit day %s: %w", day.Format("2006-01-02"), err)
	}
	return purged, nil
}

const snapshotSelectCols = `
	item_id, day,
	open_buy_price, open_sell_price, close_buy_price, close_sell_price,
	min_buy_price, max_buy_price, min_sell_price, max_sell_price,
	avg_buy_price, avg_sell_price, median_buy_price, median_sell_price,
	std_buy_price, std_sell_price,
	avg_spread, min_spread, max_spread, pct_spread,
	coef_var_buy, true_range, delta_buy_price, delta_sell_price, atr_like,
	vwap_buy, vwap_sell,
	total_buy_qty_listed, total_sell_qty_listed,
	exec_buy_qty, exec_sell_qty, imbalance_qty,
	sell_through_rate, buy_liquidity_ratio, sell_liquidity_ratio,
	pct_change_buy, pct_change_sell`

func scanSnapshot(row pgx.Row) (domain.DailySnapshot, error) {
	var s domain.DailySnapshot
	err := row.Scan(
		&s.ItemID, &s.Day,
		&s.OpenBuyPrice, &s.OpenSellPrice, &s.CloseBuyPrice, &s.CloseSellPrice,
		&s.MinBuyPrice, &s.MaxBuyPrice, &s.MinSellPrice, &s.MaxSellPrice,
		&s.AvgBuyPrice, &s.AvgSellPrice, &s.MedianBuyPrice, &s.MedianSellPrice,
		&s.StdBuyPrice, &s.StdSellPrice,
		&s.AvgSpread, &s.MinSpread, &s.MaxSpread, &s.PctSpread,
		&s.CoefVarBuy, &s.TrueRange, &s.DeltaBuyPrice, &s.DeltaSellPrice, &s.AtrLike,
		&s.VwapBuy, &s.VwapSell,
		&s.TotalBuyQtyListed, &s.TotalSellQtyListed,
		&s.ExecBuyQty, &s.ExecSellQty, &s.ImbalanceQty,
		&s.SellThroughRate, &s.BuyLiquidityRatio, &s.SellLiquidityRatio,
		&s.PctChangeBuy, &s.PctChangeSell,
	)
	if err != nil {
		return domain.DailySnapshot{}, err
	}
	s.Day = domain.DayOf(s.Day)
	return s, nil
}

// GetByItemDay returns the snapshot for one (item, day), or
// domain.ErrNotFound.
func (s *SnapshotStore) GetByItemDay(ctx context.Context, itemID int64, day time.Time) (domain.DailySnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotSelectCols+` FROM snapshots WHERE item_id = $1 AND day = $2`,
		itemID, domain.DayOf(day),
	)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DailySnapshot{}, domain.ErrNotFound
		}
		return domain.DailySnapshot{}, fmt.Errorf("postgres: get snapshot: %w", err)
	}
	return snap, nil
}

// LatestDay returns the most recent day with snapshots, or domain.ErrNotFound
// when the table is empty.
func (s *SnapshotStore) LatestDay(ctx context.Context) (time.Time, error) {
	var day *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(day) FROM snapshots`).Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: latest snapshot day: %w", err)
	}
	if day == nil {
		return time.Time{}, domain.ErrNotFound
	}
	return domain.DayOf(*day), nil
}

// ListForDay returns all snapshots of the given day ordered by item id.
func (s *SnapshotStore) ListForDay(ctx context.Context, day time.Time) ([]domain.DailySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotSelectCols+` FROM snapshots WHERE day = $1 ORDER BY item_id`,
		domain.DayOf(day),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for day: %w", err)
	}
	defer rows.Close()

	var snaps []domain.DailySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)

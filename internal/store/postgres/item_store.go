package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// ItemStore implements domain.ItemStore using PostgreSQL.
type ItemStore struct {
	pool *pgxpool.Pool
}

// NewItemStore creates a new ItemStore backed by the given connection pool.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

// UpsertBatch inserts or renames items. Re-resolving an item with a real name
// overwrites an earlier auto_<id> placeholder.
func (s *ItemStore) UpsertBatch(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO items (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	for _, item := range items {
		batch.Queue(query, item.ID, item.Name)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert item batch item %d: %w", i, err)
		}
	}
	return nil
}

// FilterMissing returns the subset of ids with no item row, preserving the
// input order.
func (s *ItemStore) FilterMissing(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: filter missing items: %w", err)
	}
	defer rows.Close()

	known := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan item id: %w", err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: filter missing items: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// GetNames returns display names for the given ids; ids without a row are
// absent from the map.
func (s *ItemStore) GetNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id, name FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get item names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("postgres: scan item name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Compile-time interface check.
var _ domain.ItemStore = (*ItemStore)(nil)

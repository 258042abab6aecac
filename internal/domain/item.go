package domain

import "fmt"

// Item maps a trading-post item id to its display name. Rows are created
// lazily the first time an unknown id shows up in an aggregation batch, or in
// bulk by the catalog importer. Items are never deleted by this system.
type Item struct {
	ID   int64
	Name string
}

// PlaceholderName is the deterministic fallback used when the upstream item
// API cannot resolve a name in time.
func PlaceholderName(itemID int64) string {
	return fmt.Sprintf("auto_%d", itemID)
}

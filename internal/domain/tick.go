package domain

import "time"

// Tick is one observation of an item's best outstanding buy order and best
// outstanding sell offer on the trading post: price in copper and total
// listed quantity on each side. Ticks are immutable once written and are
// unique per (item, timestamp).
type Tick struct {
	ID           int64
	ItemID       int64
	Ts           time.Time
	BuyPrice     int64
	BuyQuantity  int64
	SellPrice    int64
	SellQuantity int64
}

// Day returns the UTC calendar day the tick belongs to.
func (t Tick) Day() time.Time {
	return DayOf(t.Ts)
}

// DayOf truncates ts to the start of its UTC calendar day.
func DayOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

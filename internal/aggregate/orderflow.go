package aggregate

import "github.com/alanyoungcy/tpbot/internal/domain"

// Flow is the inferred executed volume for one item over one day.
type Flow struct {
	// ExecBuyQty is the quantity inferred to have been bought by takers
	// against standing sell offers (sell-side depth depletion).
	ExecBuyQty int64

	// ExecSellQty is the quantity inferred to have been sold against
	// standing buy orders (buy-side depth depletion).
	ExecSellQty int64
}

// InferFlow walks an item's ticks in slice order and attributes tick-to-tick
// decreases in outstanding listed quantity as executed volume. Increases are
// not an event: a new listing and trade-driven depletion are
// indistinguishable from quantity alone, so only the net decrease counts.
// The first tick has no predecessor and contributes nothing.
//
// This is a deliberate heuristic rather than ground truth. It undercounts
// when a listing is added and fully consumed within one interval, and it
// cannot tell cancellation from execution. The upstream API exposes order
// book depth, not trade prints, so this is the best available proxy.
func InferFlow(ticks []domain.Tick) Flow {
	var f Flow
	for i := 1; i < len(ticks); i++ {
		prev, cur := ticks[i-1], ticks[i]
		if prev.SellQuantity > cur.SellQuantity {
			f.ExecBuyQty += prev.SellQuantity - cur.SellQuantity
		}
		if prev.BuyQuantity > cur.BuyQuantity {
			f.ExecSellQty += prev.BuyQuantity - cur.BuyQuantity
		}
	}
	return f
}

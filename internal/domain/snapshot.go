package domain

import "time"

// DailySnapshot condenses one item's full day of ticks into a single
// statistical row. It is keyed by (ItemID, Day); re-aggregating the same
// unchanged tick set must reproduce the row field for field.
//
// Prices are integer copper. Pointer fields are ratios whose denominator can
// legitimately be zero; nil means "unknown", never zero.
type DailySnapshot struct {
	ItemID int64
	Day    time.Time // midnight UTC

	// Open / close (first and last tick of the day in timestamp order).
	OpenBuyPrice   int64
	OpenSellPrice  int64
	CloseBuyPrice  int64
	CloseSellPrice int64

	// Extrema and central statistics per side. Averages and medians are
	// integer-truncated for storage.
	MinBuyPrice     int64
	MaxBuyPrice     int64
	MinSellPrice    int64
	MaxSellPrice    int64
	AvgBuyPrice     int64
	AvgSellPrice    int64
	MedianBuyPrice  int64
	MedianSellPrice int64
	StdBuyPrice     float64
	StdSellPrice    float64

	// Spread statistics (sell - buy per tick).
	AvgSpread int64
	MinSpread int64
	MaxSpread int64
	PctSpread *float64

	// Relative volatility.
	CoefVarBuy *float64

	// Range metrics.
	TrueRange      int64
	DeltaBuyPrice  int64
	DeltaSellPrice int64
	AtrLike        int64

	// "VWAP" is the truncated arithmetic mean price. The name is historical:
	// it is not quantity-weighted and deliberately kept that way.
	VwapBuy  int64
	VwapSell int64

	// Order book depth and inferred execution volume.
	TotalBuyQtyListed  int64
	TotalSellQtyListed int64
	ExecBuyQty         int64
	ExecSellQty        int64
	ImbalanceQty       int64
	SellThroughRate    *float64
	BuyLiquidityRatio  *float64
	SellLiquidityRatio *float64

	// Close-vs-open percent change per side; nil when the open is zero.
	PctChangeBuy  *float64
	PctChangeSell *float64
}

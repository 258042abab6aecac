package aggregate

import (
	"time"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// Synthesize merges an item's window statistics and inferred flow into the
// DailySnapshot row for the given day. Every ratio whose denominator is zero
// comes out nil, never zero: a zero would silently read as "no movement"
// where the truth is "unknown".
//
// Ratios are computed from the full-precision averages before those are
// integer-truncated for storage, matching the reference computation which
// truncated only at insert time.
func Synthesize(itemID int64, day time.Time, w WindowStats, f Flow) domain.DailySnapshot {
	s := domain.DailySnapshot{
		ItemID: itemID,
		Day:    day,

		OpenBuyPrice:   w.OpenBuy,
		OpenSellPrice:  w.OpenSell,
		CloseBuyPrice:  w.CloseBuy,
		CloseSellPrice: w.CloseSell,

		MinBuyPrice:     w.MinBuy,
		MaxBuyPrice:     w.MaxBuy,
		MinSellPrice:    w.MinSell,
		MaxSellPrice:    w.MaxSell,
		AvgBuyPrice:     int64(w.AvgBuy),
		AvgSellPrice:    int64(w.AvgSell),
		MedianBuyPrice:  int64(w.MedianBuy),
		MedianSellPrice: int64(w.MedianSell),
		StdBuyPrice:     w.StdBuy,
		StdSellPrice:    w.StdSell,

		AvgSpread: int64(w.AvgSpread),
		MinSpread: w.MinSpread,
		MaxSpread: w.MaxSpread,

		TrueRange:      w.MaxSell - w.MinBuy,
		DeltaBuyPrice:  w.MaxBuy - w.MinBuy,
		DeltaSellPrice: w.MaxSell - w.MinSell,

		// Truncated mean, not quantity-weighted. The column name predates
		// this implementation and is kept for downstream compatibility.
		VwapBuy:  int64(w.AvgBuy),
		VwapSell: int64(w.AvgSell),

		TotalBuyQtyListed:  w.TotalBuyQty,
		TotalSellQtyListed: w.TotalSellQty,
		ExecBuyQty:         f.ExecBuyQty,
		ExecSellQty:        f.ExecSellQty,
		ImbalanceQty:       w.TotalBuyQty - w.TotalSellQty,
	}
	s.AtrLike = s.DeltaBuyPrice + s.DeltaSellPrice

	if w.OpenBuy != 0 {
		s.PctChangeBuy = ptr(float64(w.CloseBuy-w.OpenBuy) * 100 / float64(w.OpenBuy))
	}
	if w.OpenSell != 0 {
		s.PctChangeSell = ptr(float64(w.CloseSell-w.OpenSell) * 100 / float64(w.OpenSell))
	}

	// Liquidity: executed volume relative to everything ever listed on the
	// opposite side that day.
	if w.TotalSellQty != 0 {
		s.BuyLiquidityRatio = ptr(float64(f.ExecSellQty) / float64(w.TotalSellQty))
	}
	if w.TotalBuyQty != 0 {
		s.SellLiquidityRatio = ptr(float64(f.ExecBuyQty) / float64(w.TotalBuyQty))
	}

	if w.AvgSell != 0 {
		s.PctSpread = ptr(w.AvgSpread * 100 / w.AvgSell)
	}
	if w.AvgBuy != 0 {
		s.CoefVarBuy = ptr(w.StdBuy / w.AvgBuy)
	}
	if denom := f.ExecSellQty + w.TotalSellQty; denom != 0 {
		s.SellThroughRate = ptr(float64(f.ExecSellQty) / float64(denom))
	}

	return s
}

func ptr(v float64) *float64 { return &v }

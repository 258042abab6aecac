// Package aggregate implements the daily aggregation core: windowed price
// statistics over one item's ordered tick sequence, order-flow inference from
// listed-quantity depletion, and the derived snapshot metrics.
package aggregate

import (
	"math"
	"sort"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// WindowStats holds the windowed statistics of one item's tick sequence for a
// single day. Averages, medians, and standard deviations are kept at full
// float precision here; truncation for storage happens in Synthesize.
type WindowStats struct {
	Count int

	OpenBuy   int64
	OpenSell  int64
	CloseBuy  int64
	CloseSell int64

	MinBuy  int64
	MaxBuy  int64
	MinSell int64
	MaxSell int64

	AvgBuy     float64
	AvgSell    float64
	MedianBuy  float64
	MedianSell float64
	StdBuy     float64
	StdSell    float64

	AvgSpread float64
	MinSpread int64
	MaxSpread int64

	TotalBuyQty  int64
	TotalSellQty int64
}

// Window replays an item's ticks in slice order and accumulates the day's
// windowed statistics. The caller is responsible for passing the ticks in
// ascending timestamp order; ticks sharing a timestamp keep their slice
// order, which fixes the open/close tie-break. Returns ok=false for an empty
// sequence, which produces no snapshot row.
func Window(ticks []domain.Tick) (WindowStats, bool) {
	n := len(ticks)
	if n == 0 {
		return WindowStats{}, false
	}

	first, last := ticks[0], ticks[n-1]
	w := WindowStats{
		Count:     n,
		OpenBuy:   first.BuyPrice,
		OpenSell:  first.SellPrice,
		CloseBuy:  last.BuyPrice,
		CloseSell: last.SellPrice,
		MinBuy:    first.BuyPrice,
		MaxBuy:    first.BuyPrice,
		MinSell:   first.SellPrice,
		MaxSell:   first.SellPrice,
		MinSpread: first.SellPrice - first.BuyPrice,
		MaxSpread: first.SellPrice - first.BuyPrice,
	}

	var sumBuy, sumSell, sumSpread int64
	var sumSqBuy, sumSqSell float64
	buys := make([]int64, 0, n)
	sells := make([]int64, 0, n)

	for _, t := range ticks {
		if t.BuyPrice < w.MinBuy {
			w.MinBuy = t.BuyPrice
		}
		if t.BuyPrice > w.MaxBuy {
			w.MaxBuy = t.BuyPrice
		}
		if t.SellPrice < w.MinSell {
			w.MinSell = t.SellPrice
		}
		if t.SellPrice > w.MaxSell {
			w.MaxSell = t.SellPrice
		}

		spread := t.SellPrice - t.BuyPrice
		if spread < w.MinSpread {
			w.MinSpread = spread
		}
		if spread > w.MaxSpread {
			w.MaxSpread = spread
		}

		sumBuy += t.BuyPrice
		sumSell += t.SellPrice
		sumSpread += spread
		sumSqBuy += float64(t.BuyPrice) * float64(t.BuyPrice)
		sumSqSell += float64(t.SellPrice) * float64(t.SellPrice)

		w.TotalBuyQty += t.BuyQuantity
		w.TotalSellQty += t.SellQuantity

		buys = append(buys, t.BuyPrice)
		sells = append(sells, t.SellPrice)
	}

	fn := float64(n)
	w.AvgBuy = float64(sumBuy) / fn
	w.AvgSell = float64(sumSell) / fn
	w.AvgSpread = float64(sumSpread) / fn
	w.StdBuy = popStddev(sumSqBuy, w.AvgBuy, fn)
	w.StdSell = popStddev(sumSqSell, w.AvgSell, fn)
	w.MedianBuy = median(buys)
	w.MedianSell = median(sells)

	return w, true
}

// popStddev is the population standard deviation (divide by N, not N-1)
// derived from the running sum of squares.
func popStddev(sumSq, mean, n float64) float64 {
	variance := sumSq/n - mean*mean
	if variance < 0 {
		// float cancellation on near-constant sequences
		variance = 0
	}
	return math.Sqrt(variance)
}

// median computes the continuous-interpolation 0.5-quantile, matching
// percentile_cont(0.5): for even-length input it averages the two middle
// values instead of picking the nearest rank. The input slice is sorted in
// place.
func median(vals []int64) float64 {
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

	n := len(vals)
	h := 0.5 * float64(n-1)
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	if frac == 0 {
		return float64(vals[lo])
	}
	return float64(vals[lo]) + frac*float64(vals[lo+1]-vals[lo])
}

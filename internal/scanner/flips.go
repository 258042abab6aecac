// Package scanner finds fast-flip candidates: items whose yesterday spread
// and today's observed turnover suggest a buy order fills quickly and resells
// at a profit after the exchange fee.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/alanyoungcy/tpbot/internal/aggregate"
	"github.com/alanyoungcy/tpbot/internal/domain"
)

// exchangeFeeKeep is the fraction of a sale the seller keeps after the 15%
// trading-post fee.
const exchangeFeeKeep = 0.85

// Thresholds are the candidate filter knobs.
type Thresholds struct {
	// MaxBuyWaitRatio caps listed buy depth over today's inferred sells, an
	// estimate of days waiting for a buy order to fill.
	MaxBuyWaitRatio float64

	// MinSellSpeed is the minimum inferred buy-side executions today, so the
	// resell side also moves.
	MinSellSpeed int64

	// MinNetGain is the minimum after-fee profit in copper.
	MinNetGain int64

	// MinSpreadPct is the minimum spread as a percentage of the buy price.
	MinSpreadPct float64
}

// DefaultThresholds returns the recommended filter values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxBuyWaitRatio: 1.5,
		MinSellSpeed:    1000,
		MinNetGain:      15,
		MinSpreadPct:    10,
	}
}

// Candidate is one item that passed every filter.
type Candidate struct {
	ItemID        int64
	Name          string
	AvgBuyPrice   int64
	AvgSellPrice  int64
	NetGain       int64
	SpreadPct     float64
	BuyQueueRatio float64
	ExecSellQty   int64
	ExecBuyQty    int64
}

// Scanner ranks flip candidates from the most recent snapshot day, refreshed
// with order flow inferred from today's still-unaggregated ticks.
type Scanner struct {
	snaps      domain.SnapshotStore
	ticks      domain.TickStore
	items      domain.ItemStore
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Scanner.
func New(snaps domain.SnapshotStore, ticks domain.TickStore, items domain.ItemStore, thresholds Thresholds, logger *slog.Logger) *Scanner {
	return &Scanner{
		snaps:      snaps,
		ticks:      ticks,
		items:      items,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// Scan returns the candidates in snapshot order. It returns an empty slice,
// not an error, when no snapshots exist yet.
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	latest, err := s.snaps.LatestDay(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("no snapshots yet, nothing to scan")
			return nil, nil
		}
		return nil, fmt.Errorf("scanner: finding latest snapshot day: %w", err)
	}

	snaps, err := s.snaps.ListForDay(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("scanner: listing snapshots for %s: %w", latest.Format("2006-01-02"), err)
	}

	todayFlow, err := s.todayFlow(ctx)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]int64, len(snaps))
	for i, snap := range snaps {
		itemIDs[i] = snap.ItemID
	}
	names, err := s.items.GetNames(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("scanner: fetching item names: %w", err)
	}

	s.logger.Info("scanning for flips",
		slog.Time("snapshot_day", latest),
		slog.Int("snapshots", len(snaps)),
		slog.Int("items_active_today", len(todayFlow)),
	)

	var out []Candidate
	for _, snap := range snaps {
		if c, ok := s.evaluate(snap, todayFlow, names); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// todayFlow infers per-item executed volume from today's raw ticks, giving
// the filters fresher turnover numbers than yesterday's snapshot.
func (s *Scanner) todayFlow(ctx context.Context) (map[int64]aggregate.Flow, error) {
	today := domain.DayOf(s.now().UTC())

	ticks, err := s.ticks.ListForDay(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("scanner: listing today's ticks: %w", err)
	}

	flows := map[int64]aggregate.Flow{}
	start := 0
	for i := 1; i <= len(ticks); i++ {
		if i == len(ticks) || ticks[i].ItemID != ticks[start].ItemID {
			group := ticks[start:i]
			flows[group[0].ItemID] = aggregate.InferFlow(group)
			start = i
		}
	}
	return flows, nil
}

// evaluate applies the four filters to one snapshot.
func (s *Scanner) evaluate(snap domain.DailySnapshot, todayFlow map[int64]aggregate.Flow, names map[int64]string) (Candidate, bool) {
	if snap.AvgBuyPrice == 0 || snap.AvgSellPrice == 0 {
		return Candidate{}, false
	}

	execBuy := snap.ExecBuyQty
	execSell := snap.ExecSellQty
	if flow, ok := todayFlow[snap.ItemID]; ok {
		execBuy = flow.ExecBuyQty
		execSell = flow.ExecSellQty
	}

	spread := snap.AvgSellPrice - snap.AvgBuyPrice
	spreadPct := float64(spread) * 100 / float64(snap.AvgBuyPrice)
	netGain := int64(float64(snap.AvgSellPrice)*exchangeFeeKeep) - snap.AvgBuyPrice

	if execSell == 0 {
		return Candidate{}, false
	}
	buyQueueRatio := float64(snap.TotalBuyQtyListed) / float64(execSell)

	if netGain < s.thresholds.MinNetGain ||
		spreadPct < s.thresholds.MinSpreadPct ||
		buyQueueRatio > s.thresholds.MaxBuyWaitRatio ||
		execBuy < s.thresholds.MinSellSpeed {
		return Candidate{}, false
	}

	name, ok := names[snap.ItemID]
	if !ok {
		name = domain.PlaceholderName(snap.ItemID)
	}

	return Candidate{
		ItemID:        snap.ItemID,
		Name:          name,
		AvgBuyPrice:   snap.AvgBuyPrice,
		AvgSellPrice:  snap.AvgSellPrice,
		NetGain:       netGain,
		SpreadPct:     spreadPct,
		BuyQueueRatio: buyQueueRatio,
		ExecSellQty:   execSell,
		ExecBuyQty:    execBuy,
	}, true
}

// Render writes the candidates as an aligned table.
func Render(w io.Writer, cands []Candidate) error {
	if len(cands) == 0 {
		_, err := fmt.Fprintln(w, "no fast-flip candidates found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tNAME\tBUY\tSELL\tNET GAIN\tSPREAD\tWAIT\tSOLD (BUY)\tSOLD (SELL)")
	for _, c := range cands {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f%%\t%.2fd\t%d\t%d\n",
			c.ItemID,
			c.Name,
			FormatCoins(c.AvgBuyPrice),
			FormatCoins(c.AvgSellPrice),
			FormatCoins(c.NetGain),
			c.SpreadPct,
			c.BuyQueueRatio,
			c.ExecSellQty,
			c.ExecBuyQty,
		)
	}
	return tw.Flush()
}

// FormatCoins renders a copper amount as gold, silver, and copper
// denominations, e.g. 123456 -> "12g 34s 56c".
func FormatCoins(copper int64) string {
	neg := ""
	if copper < 0 {
		neg = "-"
		copper = -copper
	}
	g := copper / 10000
	s := (copper % 10000) / 100
	c := copper % 100
	return fmt.Sprintf("%s%dg %02ds %02dc", neg, g, s, c)
}

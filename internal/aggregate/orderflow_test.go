package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

func TestInferFlowSellSideDepletion(t *testing.T) {
	// sell_qty 40 -> 30: 10 units bought against standing sell offers.
	// buy_qty unchanged: nothing sold into buy orders.
	ticks := []domain.Tick{
		tick(0, 100, 50, 110, 40),
		tick(10, 105, 50, 112, 30),
	}

	f := InferFlow(ticks)
	assert.Equal(t, int64(10), f.ExecBuyQty)
	assert.Equal(t, int64(0), f.ExecSellQty)
}

func TestInferFlowIncreaseIsNotAnEvent(t *testing.T) {
	// A third tick with sell_qty back up to 45: the relist contributes
	// nothing, cumulative exec stays at the earlier 10.
	ticks := []domain.Tick{
		tick(0, 100, 50, 110, 40),
		tick(10, 105, 50, 112, 30),
		tick(20, 105, 50, 112, 45),
	}

	f := InferFlow(ticks)
	assert.Equal(t, int64(10), f.ExecBuyQty)
	assert.Equal(t, int64(0), f.ExecSellQty)
}

func TestInferFlowBothSides(t *testing.T) {
	ticks := []domain.Tick{
		tick(0, 100, 80, 110, 40),
		tick(10, 100, 60, 110, 35), // 20 sold into buys, 5 bought from sells
		tick(20, 100, 55, 110, 50), // 5 more sold, sell side relisted
	}

	f := InferFlow(ticks)
	assert.Equal(t, int64(5), f.ExecBuyQty)
	assert.Equal(t, int64(25), f.ExecSellQty)
}

func TestInferFlowNonNegative(t *testing.T) {
	cases := []struct {
		name  string
		ticks []domain.Tick
	}{
		{"empty", nil},
		{"single tick", []domain.Tick{tick(0, 1, 1, 2, 1)}},
		{"only increases", []domain.Tick{
			tick(0, 1, 10, 2, 10),
			tick(1, 1, 20, 2, 30),
			tick(2, 1, 25, 2, 40),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := InferFlow(tc.ticks)
			assert.Equal(t, int64(0), f.ExecBuyQty)
			assert.Equal(t, int64(0), f.ExecSellQty)
		})
	}
}

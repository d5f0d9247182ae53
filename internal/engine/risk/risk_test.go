package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantedge/matchcore/internal/engine/types"
)

func baseConfig() Config {
	return Config{
		GlobalMaxQty:      1000,
		GlobalMaxNotional: 1_000_000,
		RatePerSec:        1_000_000,
		Burst:             1_000_000,
	}
}

func TestRejectsZeroOrNegativeQty(t *testing.T) {
	g := New(baseConfig())
	reason, ok := g.Check(types.NewOrderCommand{Qty: 0, PriceTicks: 1, Symbol: 1})
	require.False(t, ok)
	require.Equal(t, types.ReasonInvalidQuantity, reason)

	reason, ok = g.Check(types.NewOrderCommand{Qty: -5, PriceTicks: 1, Symbol: 1})
	require.False(t, ok)
	require.Equal(t, types.ReasonInvalidQuantity, reason)
}

func TestRejectsExceedingGlobalMaxQty(t *testing.T) {
	g := New(baseConfig())
	reason, ok := g.Check(types.NewOrderCommand{Qty: 2000, PriceTicks: 1, Symbol: 1})
	require.False(t, ok)
	require.Equal(t, types.ReasonExceedsMaxQty, reason)
}

func TestSymbolOverrideTighterThanGlobal(t *testing.T) {
	g := New(baseConfig())
	g.SetSymbolLimit(7, SymbolLimits{MaxQty: 10, MaxNotional: 100})

	reason, ok := g.Check(types.NewOrderCommand{Qty: 50, PriceTicks: 1, Symbol: 7})
	require.False(t, ok)
	require.Equal(t, types.ReasonExceedsMaxQty, reason)

	// Same order on a symbol with no override passes the qty check.
	_, ok = g.Check(types.NewOrderCommand{Qty: 50, PriceTicks: 1, Symbol: 99})
	require.True(t, ok)
}

func TestNotionalOverflowSaturatesInsteadOfWrapping(t *testing.T) {
	cfg := baseConfig()
	cfg.GlobalMaxQty = 1 << 62
	cfg.GlobalMaxNotional = 1 << 62
	g := New(cfg)

	reason, ok := g.Check(types.NewOrderCommand{
		Qty:        1 << 40,
		PriceTicks: 1 << 40,
		Symbol:     1,
	})
	require.False(t, ok)
	require.Equal(t, types.ReasonExceedsMaxNotional, reason)
}

func TestRateLimiterDeniesAfterBurstExhausted(t *testing.T) {
	cfg := Config{
		GlobalMaxQty:      1000,
		GlobalMaxNotional: 1_000_000,
		RatePerSec:        0.001,
		Burst:             1,
	}
	g := New(cfg)
	cmd := types.NewOrderCommand{Qty: 1, PriceTicks: 1, Symbol: 1}

	_, ok := g.Check(cmd)
	require.True(t, ok)

	_, ok = g.Check(cmd)
	require.False(t, ok)
}

func TestPerformanceModeSkipsRateLimit(t *testing.T) {
	cfg := Config{
		GlobalMaxQty:      1000,
		GlobalMaxNotional: 1_000_000,
		RatePerSec:        0.001,
		Burst:             1,
	}
	g := New(cfg)
	g.SetPerformanceMode(true)
	cmd := types.NewOrderCommand{Qty: 1, PriceTicks: 1, Symbol: 1}

	for i := 0; i < 5; i++ {
		_, ok := g.Check(cmd)
		require.True(t, ok)
	}
}

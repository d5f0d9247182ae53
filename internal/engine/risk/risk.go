// Package risk implements the pre-trade risk gate (C7): quantity and
// notional bound checks plus an order-rate limiter, evaluated before an
// order ever reaches the book.
//
// Grounded on include/hft/risk_manager.h's RiskManager for the bound shape
// (global + per-symbol qty/notional limits) and on the teacher's
// internal/trading/mitigation/rate_limiter.go for the rate limiter itself —
// golang.org/x/time/rate's token bucket replaces the source's raw
// fixed-second RateWindow counter per the distilled specification, which
// calls for token-bucket semantics rather than a calendar-second window.
package risk

import (
	"math/bits"

	"golang.org/x/time/rate"

	"github.com/quantedge/matchcore/internal/engine/types"
)

// SymbolLimits overrides the global bounds for one symbol.
type SymbolLimits struct {
	MaxQty      types.Quantity
	MaxNotional uint64 // ticks: |price| * |qty|, saturated at math.MaxUint64
}

// Config configures a Gate.
type Config struct {
	GlobalMaxQty      types.Quantity
	GlobalMaxNotional uint64
	// RatePerSec and Burst parameterize the token bucket; a Burst of 0 or
	// less uses RatePerSec truncated to an integer, or 1 if that is below 1.
	RatePerSec float64
	Burst      int
}

// Gate is the hot-path pre-trade risk check. It is safe for single-goroutine
// use only — the shard worker is its sole caller.
type Gate struct {
	globalMaxQty      types.Quantity
	globalMaxNotional uint64
	symbolLimits      map[types.Symbol]SymbolLimits
	limiter           *rate.Limiter
	performanceMode   bool
}

// New builds a Gate from cfg.
func New(cfg Config) *Gate {
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RatePerSec)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Gate{
		globalMaxQty:      cfg.GlobalMaxQty,
		globalMaxNotional: cfg.GlobalMaxNotional,
		symbolLimits:      make(map[types.Symbol]SymbolLimits),
		limiter:           rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
	}
}

// SetSymbolLimit installs or replaces sym's override bounds. Call only from
// the init/config path, never the hot path.
func (g *Gate) SetSymbolLimit(sym types.Symbol, limits SymbolLimits) {
	g.symbolLimits[sym] = limits
}

// SetPerformanceMode disables the rate limiter check, matching the source's
// benchmark escape hatch. It must never be enabled against live order flow.
func (g *Gate) SetPerformanceMode(enabled bool) { g.performanceMode = enabled }

// Check validates an incoming new-order command against every configured
// bound, returning the first violated reason, or ("", true) if it passes.
func (g *Gate) Check(cmd types.NewOrderCommand) (types.RejectReason, bool) {
	if cmd.Qty <= 0 {
		return types.ReasonInvalidQuantity, false
	}
	if cmd.Qty > g.globalMaxQty {
		return types.ReasonExceedsMaxQty, false
	}

	limits, hasOverride := g.symbolLimits[cmd.Symbol]
	if hasOverride && limits.MaxQty > 0 && cmd.Qty > limits.MaxQty {
		return types.ReasonExceedsMaxQty, false
	}

	notional := widenMulAbs(cmd.PriceTicks, cmd.Qty)
	if notional > g.globalMaxNotional {
		return types.ReasonExceedsMaxNotional, false
	}
	if hasOverride && limits.MaxNotional > 0 && notional > limits.MaxNotional {
		return types.ReasonExceedsMaxNotional, false
	}

	if !g.performanceMode && !g.limiter.Allow() {
		return types.ReasonRateLimited, false
	}

	return "", true
}

// widenMulAbs computes |a| * |b| as a full 128-bit product and saturates it
// to uint64, since the book's notional bound is compared in uint64 ticks.
// Go has no native int128; math/bits.Mul64 gives the exact high/low halves
// of the product so the check never silently wraps on 64-bit overflow the
// way a naive int64 multiply would.
func widenMulAbs(price types.Price, qty types.Quantity) uint64 {
	ap := absU64(price)
	aq := absU64(qty)
	hi, lo := bits.Mul64(ap, aq)
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

package book

import (
	"math"

	"github.com/quantedge/matchcore/internal/engine/types"
)

// tracker maintains the current best (max for bids, min for asks) price
// across every level, backed by a max/min segment tree keyed on count so a
// level that empties out stops being a candidate without a linear rescan.
//
// Grounded on include/hft/price_tracker.h's PriceTracker<IsMaxTree>.
type tracker struct {
	isMax  bool
	n      int
	prices []types.Price
	counts []int32
}

func newTracker(levels int, isMax bool) *tracker {
	n := 1
	for n < levels {
		n *= 2
	}
	t := &tracker{isMax: isMax, n: n, prices: make([]types.Price, 2*n), counts: make([]int32, 2*n)}
	neutral := t.neutralPrice()
	for i := range t.prices {
		t.prices[i] = neutral
	}
	return t
}

func (t *tracker) neutralPrice() types.Price {
	if t.isMax {
		return 0
	}
	return math.MaxInt64
}

// Update records level's current price and resting-order count, then
// propagates the best candidate up to the root.
func (t *tracker) Update(levelIdx int, price types.Price, count int32) {
	if levelIdx >= t.n {
		return
	}
	i := t.n + levelIdx
	t.prices[i] = price
	t.counts[i] = count
	for i > 1 {
		i >>= 1
		left, right := 2*i, 2*i+1
		lc, rc := t.counts[left], t.counts[right]
		switch {
		case lc > 0 && rc > 0:
			t.counts[i] = lc + rc
			t.prices[i] = t.better(t.prices[left], t.prices[right])
		case lc > 0:
			t.counts[i] = lc
			t.prices[i] = t.prices[left]
		case rc > 0:
			t.counts[i] = rc
			t.prices[i] = t.prices[right]
		default:
			t.counts[i] = 0
			t.prices[i] = t.neutralPrice()
		}
	}
}

func (t *tracker) better(a, b types.Price) types.Price {
	if t.isMax {
		if a > b {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

// Best returns the current best price and whether any level has orders.
func (t *tracker) Best() (types.Price, bool) {
	if t.counts[1] <= 0 {
		return 0, false
	}
	return t.prices[1], true
}

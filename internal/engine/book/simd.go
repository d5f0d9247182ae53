package book

import "github.com/quantedge/matchcore/internal/engine/types"

// MaxMatchBatch bounds how many hot-window orders a single match pass
// inspects, mirroring the source's 16-wide SIMD lane result buffer. The
// level's match loop calls matchOrdersSIMD repeatedly until the incoming
// order is filled or the hot window is exhausted, so this is a batch size,
// not a hard cap on fills per level.
const MaxMatchBatch = 16

// matchResult is the scalar equivalent of the source's SimdMatchResult: up
// to MaxMatchBatch (resting-order-index, matched-quantity) pairs.
type matchResult struct {
	indices [MaxMatchBatch]int
	qtys    [MaxMatchBatch]types.Quantity
	count   int
}

// matchOrdersSIMD computes, for each of the first MaxMatchBatch live resting
// orders in orders[:count], min(restingQty, incomingQty) — the per-order
// matched quantity — without
// mutating any state. It is written as a flat, branch-light loop so it maps
// onto the same data-parallel shape the source's AVX2/SSE4.2 paths use; the
// spec requires only that the result be bit-identical to this scalar
// definition, not that the loop itself vectorize.
func matchOrdersSIMD(orders [HotWindowSize]*types.Node, qtys [HotWindowSize]types.Quantity, count int, incomingQty types.Quantity) matchResult {
	var result matchResult
	for i := 0; i < count && result.count < MaxMatchBatch; i++ {
		n := orders[i]
		if n == nil || qtys[i] <= 0 {
			continue
		}
		matched := qtys[i]
		if incomingQty < matched {
			matched = incomingQty
		}
		if matched <= 0 {
			continue
		}
		result.indices[result.count] = i
		result.qtys[result.count] = matched
		result.count++
	}
	return result
}

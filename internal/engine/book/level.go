// Package book implements the price level and order book core (C5/C6):
// FIFO price-time priority levels backed by a 32-slot SIMD-matching hot
// window plus an overflow list, and the two-sided book that crosses
// incoming orders against them via the segment tree's range search.
//
// Grounded on include/hft/matching_engine_types.h's PriceLevel (hot window +
// overflow map) and include/hft/order_book.h's match_order/add_limit_order/
// remove_order flow.
package book

import "github.com/quantedge/matchcore/internal/engine/types"

// HotWindowSize is the number of resting orders a level matches directly,
// without touching the overflow list — the portion C11's matcher operates
// over.
const HotWindowSize = 32

// Level is one price's resting order queue. It is owned by exactly one
// shard worker; no field needs atomics because nothing outside that worker
// ever touches it.
type Level struct {
	Price        types.Price
	orders       [HotWindowSize]*types.Node
	hotCount     int
	overflow     []*types.Node
	overflowPos  map[types.OrderID]int
	OrderCount   int
	TotalQty     types.Quantity
}

// NewLevel builds an empty level for price.
func NewLevel(price types.Price) *Level {
	return &Level{
		Price:       price,
		overflowPos: make(map[types.OrderID]int),
	}
}

// Population returns the leaf value the level contributes to its segment
// tree: resting-order count, not quantity. OrderCount already excludes
// tombstoned overflow slots, since Remove decrements it immediately.
func (l *Level) Population() int32 {
	return int32(l.OrderCount)
}

// Add appends node to the FIFO queue, preferring the hot window while it has
// room and falling back to the overflow list otherwise.
func (l *Level) Add(node *types.Node) {
	if l.hotCount < HotWindowSize {
		l.orders[l.hotCount] = node
		l.hotCount++
		l.OrderCount++
		l.TotalQty += node.Hot.Qty
		return
	}
	l.overflow = append(l.overflow, node)
	l.overflowPos[node.Hot.ID] = len(l.overflow) - 1
	l.OrderCount++
	l.TotalQty += node.Hot.Qty
}

// Remove deletes node from wherever it rests. It is a no-op if node is not
// present. Removal from the hot window is swap-with-last: FIFO order within
// the hot window is a matching-priority artifact of insertion order, and
// once an order is removed its relative position no longer matters.
func (l *Level) Remove(node *types.Node) {
	for i := 0; i < l.hotCount; i++ {
		if l.orders[i] == node {
			last := l.hotCount - 1
			l.orders[i] = l.orders[last]
			l.orders[last] = nil
			l.hotCount--
			l.OrderCount--
			l.TotalQty -= node.Hot.Qty
			return
		}
	}
	if pos, ok := l.overflowPos[node.Hot.ID]; ok {
		delete(l.overflowPos, node.Hot.ID)
		if pos < len(l.overflow) && l.overflow[pos] == node {
			l.overflow[pos] = nil
		}
		l.OrderCount--
		l.TotalQty -= node.Hot.Qty
	}
}

// CompactIfNeeded drops tombstoned overflow entries left behind by Remove.
// The shard worker calls this during periodic maintenance, never on the
// match-critical path.
func (l *Level) CompactIfNeeded() {
	live := 0
	for _, n := range l.overflow {
		if n != nil {
			live++
		}
	}
	if live == len(l.overflow) {
		return
	}
	compacted := make([]*types.Node, 0, live)
	for _, n := range l.overflow {
		if n != nil {
			compacted = append(compacted, n)
		}
	}
	l.overflow = compacted
	l.overflowPos = make(map[types.OrderID]int, len(compacted))
	for i, n := range compacted {
		l.overflowPos[n.Hot.ID] = i
	}
}

// Empty reports whether the level currently holds no resting orders.
func (l *Level) Empty() bool {
	return l.OrderCount == 0
}

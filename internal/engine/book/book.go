// Package book's Book type is the matching core's order book (C6): two
// parallel level arrays (bids, asks) each paired with a segment tree for
// range search and a best-price tracker, plus the crossing algorithm that
// walks them.
//
// Grounded on include/hft/order_book.h's OrderBook class: match_order,
// add_limit_order, remove_order, and process_command are ported with the
// same structure. Two deliberate deviations from the source, both required
// by the distilled specification rather than invented here:
//
//   - A fully-filled taker order never receives an Accept event — only the
//     Trade events produced while it crossed. The source's process_command
//     calls engine_on_accept unconditionally whenever qty reaches zero
//     after matching, which this port treats as a bug in the source rather
//     than intended behavior to preserve.
//   - Fill-or-kill orders are evaluated for sufficient resting liquidity
//     before any match is applied; on insufficient liquidity the order is
//     rejected with no partial fill, which the source does not implement
//     (it has no FOK handling at all).
package book

import (
	"github.com/quantedge/matchcore/internal/engine/segtree"
	"github.com/quantedge/matchcore/internal/engine/types"
)

// Book is a single symbol's two-sided limit order book. It is owned and
// mutated by exactly one shard worker.
type Book struct {
	Symbol    types.Symbol
	MinPrice  types.Price
	TickSize  types.Price
	numLevels int

	bids []*Level
	asks []*Level

	bidTree *segtree.Tree
	askTree *segtree.Tree

	bidTracker *tracker
	askTracker *tracker
}

// New builds an empty book spanning [minPrice, maxPrice] at tickSize
// granularity.
func New(symbol types.Symbol, minPrice, maxPrice, tickSize types.Price) *Book {
	if tickSize <= 0 {
		tickSize = 1
	}
	numLevels := int((maxPrice-minPrice)/tickSize) + 1

	b := &Book{
		Symbol:    symbol,
		MinPrice:  minPrice,
		TickSize:  tickSize,
		numLevels: numLevels,
		bids:      make([]*Level, numLevels),
		asks:      make([]*Level, numLevels),
		bidTree:   segtree.New(numLevels),
		askTree:   segtree.New(numLevels),
	}
	b.bidTracker = newTracker(numLevels, true)
	b.askTracker = newTracker(numLevels, false)
	for i := 0; i < numLevels; i++ {
		price := minPrice + types.Price(i)*tickSize
		b.bids[i] = NewLevel(price)
		b.asks[i] = NewLevel(price)
	}
	return b
}

// priceToLevel maps a price to its tick index, or false if out of range.
func (b *Book) priceToLevel(price types.Price) (int, bool) {
	if price < b.MinPrice {
		return 0, false
	}
	idx := int((price - b.MinPrice) / b.TickSize)
	if idx < 0 || idx >= b.numLevels {
		return 0, false
	}
	return idx, true
}

// PriceInRange reports whether price maps to one of the book's levels, the
// same bound addLimitOrder enforces. Alignment to TickSize is not checked:
// a price between two ticks maps to the level below it.
func (b *Book) PriceInRange(price types.Price) bool {
	_, ok := b.priceToLevel(price)
	return ok
}

// BestBid returns the highest priced resting bid, if any.
func (b *Book) BestBid() (types.Price, bool) { return b.bidTracker.Best() }

// BestAsk returns the lowest priced resting ask, if any.
func (b *Book) BestAsk() (types.Price, bool) { return b.askTracker.Best() }

// Process applies a new order's crossing and resting logic, appending every
// Trade/Accept/Reject event it produces to out and returning the extended
// slice. node's hot fields (Qty, Filled, Status) are mutated in place.
func (b *Book) Process(node *types.Node, now types.Timestamp, out []types.Event) []types.Event {
	if node.Hot.Qty <= 0 {
		return out
	}

	if node.Hot.TIF == types.FOK {
		if !b.canFillCompletely(node) {
			node.Hot.Status = types.StatusRejected
			out = append(out, types.Event{
				Kind: types.EvtReject,
				Reject: types.RejectEvent{
					OrderID:   node.Hot.ID,
					Reason:    types.ReasonInsufficientLiquid,
					Timestamp: now,
				},
			})
			return out
		}
	}

	out = b.matchOrder(node, now, out)

	if node.Hot.Qty > 0 {
		if node.Hot.TIF == types.IOC || node.Hot.TIF == types.FOK {
			// Residual does not rest; it is silently extinguished. The
			// taker already received every Trade event it is owed.
			node.Hot.Qty = 0
			if node.Hot.Filled > 0 {
				node.Hot.Status = types.StatusPartiallyFilled
			} else {
				node.Hot.Status = types.StatusCancelled
			}
			return out
		}
		if node.Hot.Type == types.Market {
			// A market order with no TIF-forced cancellation still cannot
			// rest: there is no price to rest it at.
			node.Hot.Qty = 0
			if node.Hot.Filled > 0 {
				node.Hot.Status = types.StatusPartiallyFilled
			} else {
				node.Hot.Status = types.StatusCancelled
			}
			return out
		}
		if !b.addLimitOrder(node) {
			node.Hot.Status = types.StatusRejected
			out = append(out, types.Event{
				Kind: types.EvtReject,
				Reject: types.RejectEvent{
					OrderID:   node.Hot.ID,
					Reason:    types.ReasonPriceOutOfRange,
					Timestamp: now,
				},
			})
			return out
		}
		if node.Hot.Filled > 0 {
			node.Hot.Status = types.StatusPartiallyFilled
		}
		out = append(out, types.Event{
			Kind:   types.EvtAccept,
			Accept: types.AcceptEvent{OrderID: node.Hot.ID, Timestamp: now},
		})
		return out
	}

	// Fully filled: Trade events already cover it, no Accept.
	node.Hot.Status = types.StatusFilled
	return out
}

// canFillCompletely reports whether the resting liquidity crossable by node
// totals at least node.Hot.Qty, without mutating any book state.
func (b *Book) canFillCompletely(node *types.Node) bool {
	isBuy := node.Hot.Side == types.Buy
	levels, _, l, r, ok := b.crossRange(node, isBuy)
	if !ok {
		return false
	}
	var available types.Quantity
	idx := l
	for idx <= r {
		level := levels[idx]
		if available >= node.Hot.Qty {
			return true
		}
		crosses := node.Hot.Type == types.Market || isBuy && node.Hot.Price >= level.Price || !isBuy && node.Hot.Price <= level.Price
		if crosses {
			available += level.TotalQty
		}
		idx++
	}
	return available >= node.Hot.Qty
}

// crossRange resolves the [l,r] tick range an incoming order may cross,
// given the opposing side's current best price.
func (b *Book) crossRange(node *types.Node, isBuy bool) (levels []*Level, tree *segtree.Tree, l, r int, ok bool) {
	if isBuy {
		bestAsk, has := b.BestAsk()
		if !has || (node.Hot.Type == types.Limit && node.Hot.Price < bestAsk) {
			return nil, nil, 0, 0, false
		}
		lIdx, _ := b.priceToLevel(bestAsk)
		var rIdx int
		if node.Hot.Type == types.Market {
			rIdx = b.numLevels - 1
		} else {
			idx, inRange := b.priceToLevel(node.Hot.Price)
			if !inRange {
				rIdx = b.numLevels - 1
			} else {
				rIdx = idx
			}
		}
		return b.asks, b.askTree, lIdx, rIdx, true
	}
	bestBid, has := b.BestBid()
	if !has || (node.Hot.Type == types.Limit && node.Hot.Price > bestBid) {
		return nil, nil, 0, 0, false
	}
	rIdx, _ := b.priceToLevel(bestBid)
	var lIdx int
	if node.Hot.Type == types.Market {
		lIdx = 0
	} else {
		idx, inRange := b.priceToLevel(node.Hot.Price)
		if !inRange {
			lIdx = 0
		} else {
			lIdx = idx
		}
	}
	return b.bids, b.bidTree, lIdx, rIdx, true
}

// matchOrder walks the crossable tick range via the segment tree's
// find_first, matching node against each level's hot window until node is
// filled, the range is exhausted, or price no longer crosses.
func (b *Book) matchOrder(node *types.Node, now types.Timestamp, out []types.Event) []types.Event {
	if node.Hot.Qty <= 0 {
		return out
	}
	isBuy := node.Hot.Side == types.Buy
	levels, tree, l, r, ok := b.crossRange(node, isBuy)
	if !ok {
		return out
	}

	idx, found := tree.FindFirst(l, r)
	for found && node.Hot.Qty > 0 {
		level := levels[idx]
		crosses := isBuy && node.Hot.Price >= level.Price || !isBuy && node.Hot.Price <= level.Price
		if node.Hot.Type != types.Market && !crosses {
			break
		}

		out = b.matchAgainstLevel(node, level, now, out)
		tree.Add(idx, level.Population()-tree.Population(idx))
		if isBuy {
			b.askTracker.Update(idx, level.Price, int32(level.OrderCount))
		} else {
			b.bidTracker.Update(idx, level.Price, int32(level.OrderCount))
		}

		if node.Hot.Qty == 0 {
			break
		}
		idx, found = tree.FindFirst(idx+1, r)
	}

	return out
}

// matchAgainstLevel drains level's hot window against node, repeating
// matchOrdersSIMD passes until node is filled or the window has no more
// live liquidity, then falls through to the overflow list.
func (b *Book) matchAgainstLevel(node *types.Node, level *Level, now types.Timestamp, out []types.Event) []types.Event {
	for node.Hot.Qty > 0 && level.hotCount > 0 {
		var qtys [HotWindowSize]types.Quantity
		for i := 0; i < level.hotCount; i++ {
			qtys[i] = level.orders[i].Hot.Qty
		}
		result := matchOrdersSIMD(level.orders, qtys, level.hotCount, node.Hot.Qty)
		if result.count == 0 {
			break
		}
		for i := 0; i < result.count && node.Hot.Qty > 0; i++ {
			slot := result.indices[i]
			bookOrder := level.orders[slot]
			if bookOrder == nil {
				continue
			}
			tradeQty := result.qtys[i]
			if tradeQty > node.Hot.Qty {
				tradeQty = node.Hot.Qty
			}
			if tradeQty <= 0 {
				continue
			}
			bookOrder.Hot.Qty -= tradeQty
			bookOrder.Hot.Filled += tradeQty
			node.Hot.Qty -= tradeQty
			node.Hot.Filled += tradeQty
			level.TotalQty -= tradeQty

			out = append(out, types.Event{
				Kind: types.EvtTrade,
				Trade: types.TradeEvent{
					TakerID:   node.Hot.ID,
					MakerID:   bookOrder.Hot.ID,
					Price:     level.Price,
					Qty:       tradeQty,
					Timestamp: now,
				},
			})

			if bookOrder.Hot.Qty <= 0 {
				bookOrder.Hot.Status = types.StatusFilled
				level.orders[slot] = nil
				level.OrderCount--
			}
		}
		// Close the gaps left by filled makers, keeping insertion order.
		live := 0
		for i := 0; i < level.hotCount; i++ {
			if level.orders[i] != nil {
				level.orders[live] = level.orders[i]
				live++
			}
		}
		for i := live; i < level.hotCount; i++ {
			level.orders[i] = nil
		}
		level.hotCount = live
	}

	for node.Hot.Qty > 0 {
		idx, maker, ok := level.firstLiveOverflow()
		if !ok {
			break
		}
		tradeQty := maker.Hot.Qty
		if tradeQty > node.Hot.Qty {
			tradeQty = node.Hot.Qty
		}
		if tradeQty <= 0 {
			break
		}
		maker.Hot.Qty -= tradeQty
		maker.Hot.Filled += tradeQty
		node.Hot.Qty -= tradeQty
		node.Hot.Filled += tradeQty
		level.TotalQty -= tradeQty

		out = append(out, types.Event{
			Kind: types.EvtTrade,
			Trade: types.TradeEvent{
				TakerID:   node.Hot.ID,
				MakerID:   maker.Hot.ID,
				Price:     level.Price,
				Qty:       tradeQty,
				Timestamp: now,
			},
		})

		if maker.Hot.Qty <= 0 {
			maker.Hot.Status = types.StatusFilled
			level.overflow[idx] = nil
			delete(level.overflowPos, maker.Hot.ID)
			level.OrderCount--
		}
	}
	return out
}

func (l *Level) firstLiveOverflow() (int, *types.Node, bool) {
	for i, n := range l.overflow {
		if n != nil {
			return i, n, true
		}
	}
	return 0, nil, false
}

// addLimitOrder rests node at its own price level.
func (b *Book) addLimitOrder(node *types.Node) bool {
	idx, ok := b.priceToLevel(node.Hot.Price)
	if !ok {
		return false
	}
	isBuy := node.Hot.Side == types.Buy
	var level *Level
	if isBuy {
		level = b.bids[idx]
	} else {
		level = b.asks[idx]
	}
	level.Add(node)
	if isBuy {
		b.bidTree.Add(idx, 1)
		b.bidTracker.Update(idx, level.Price, int32(level.OrderCount))
	} else {
		b.askTree.Add(idx, 1)
		b.askTracker.Update(idx, level.Price, int32(level.OrderCount))
	}
	return true
}

// Cancel removes node from its resting level, if it still rests there.
func (b *Book) Cancel(node *types.Node) bool {
	idx, ok := b.priceToLevel(node.Hot.Price)
	if !ok {
		return false
	}
	isBuy := node.Hot.Side == types.Buy
	var level *Level
	var tree *segtree.Tree
	if isBuy {
		level = b.bids[idx]
		tree = b.bidTree
	} else {
		level = b.asks[idx]
		tree = b.askTree
	}
	before := level.OrderCount
	level.Remove(node)
	if level.OrderCount == before {
		return false
	}
	tree.Add(idx, int32(level.OrderCount-before))
	if isBuy {
		b.bidTracker.Update(idx, level.Price, int32(level.OrderCount))
	} else {
		b.askTracker.Update(idx, level.Price, int32(level.OrderCount))
	}
	node.Hot.Status = types.StatusCancelled
	return true
}

// PeriodicMaintenance compacts every level's overflow list. The shard
// worker calls this every K dequeued commands, never on the match path.
func (b *Book) PeriodicMaintenance() {
	for _, l := range b.bids {
		l.CompactIfNeeded()
	}
	for _, l := range b.asks {
		l.CompactIfNeeded()
	}
}

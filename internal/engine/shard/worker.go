// Package shard implements the shard worker (C9): the single goroutine
// that owns one symbol's pool, order book, risk gate, and command queue,
// pulling commands off the ring in small batches and publishing whatever
// events result.
//
// Grounded on include/hft/shard.h's Shard struct (pool + order_book +
// queue + shard_id bundle and the external-order-id bit layout) and
// include/hft/matching_engine_inl.h's process_command dispatch.
package shard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantedge/matchcore/internal/engine/book"
	"github.com/quantedge/matchcore/internal/engine/clock"
	"github.com/quantedge/matchcore/internal/engine/epoch"
	"github.com/quantedge/matchcore/internal/engine/errs"
	"github.com/quantedge/matchcore/internal/engine/pool"
	"github.com/quantedge/matchcore/internal/engine/queue"
	"github.com/quantedge/matchcore/internal/engine/risk"
	"github.com/quantedge/matchcore/internal/engine/sink"
	"github.com/quantedge/matchcore/internal/engine/types"
)

// BatchSize bounds how many commands a single dequeue pass drains from the
// ring before the worker processes them and checks for a stop request.
const BatchSize = 16

// MaintenanceInterval is the number of processed commands between
// PeriodicMaintenance and epoch-reclamation sweeps.
const MaintenanceInterval = 4096

// orderLocation records where a live order rests, so Cancel can find it
// without a symbol-wide scan.
type orderLocation struct {
	index      uint32
	generation uint32
}

// replayLevel is the synthetic order the replay feeder last rested at one
// price, and the quantity it was resting, so a later frame quoting the same
// price and quantity is a no-op instead of a needless cancel+re-add.
type replayLevel struct {
	loc orderLocation
	id  types.OrderID
	qty types.Quantity
}

// Worker owns every piece of state for one shard: its slice of the index
// pool, its order book, its risk gate, its inbound ring, and the sink fan-
// out it publishes to.
type Worker struct {
	ID int

	pool  *pool.Pool
	book  *book.Book
	risk  *risk.Gate
	queue *queue.Ring
	clk   clock.Source
	epoch *epoch.Manager
	sink  sink.Sink
	log   *zap.Logger

	liveOrders map[types.OrderID]orderLocation

	// replayBid/replayAsk track the synthetic order currently resting at
	// each price level on behalf of the replay feeder, so the next
	// MarketDataFrame for that price can reconcile against it instead of
	// blindly stacking a new order on top of the last one.
	replayBid map[types.Symbol]map[types.Price]replayLevel
	replayAsk map[types.Symbol]map[types.Price]replayLevel

	processed uint64
	stop      chan struct{}
	done      chan struct{}
}

// Config bundles the dependencies a Worker needs at construction.
type Config struct {
	ID         int
	PoolCap    int
	MinPrice   types.Price
	MaxPrice   types.Price
	TickSize   types.Price
	Symbol     types.Symbol
	Risk       risk.Config
	Queue      int
	Clock      clock.Source
	Sink       sink.Sink
	Logger     *zap.Logger
}

// New constructs a Worker from cfg. It does not start the run loop.
func New(cfg Config) *Worker {
	if cfg.Clock == nil {
		cfg.Clock = clock.Monotonic{}
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.Null{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	w := &Worker{
		ID:         cfg.ID,
		pool:       pool.New(cfg.PoolCap),
		book:       book.New(cfg.Symbol, cfg.MinPrice, cfg.MaxPrice, cfg.TickSize),
		risk:       risk.New(cfg.Risk),
		queue:      queue.New(cfg.Queue),
		clk:        cfg.Clock,
		sink:       cfg.Sink,
		log:        logger.With(zap.Int("shard_id", cfg.ID)),
		liveOrders: make(map[types.OrderID]orderLocation),
		replayBid:  make(map[types.Symbol]map[types.Price]replayLevel),
		replayAsk:  make(map[types.Symbol]map[types.Price]replayLevel),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	w.epoch = epoch.NewManager(func(node *types.Node) {
		w.pool.Release(node)
	})
	return w
}

// Submit attempts to enqueue cmd for this shard, returning false if the
// ring is currently full. Safe to call from exactly one producer goroutine.
func (w *Worker) Submit(cmd types.Command) bool {
	return w.queue.TryPush(cmd)
}

// Run drains the command ring until ctx is cancelled or Stop is called,
// processing commands in batches of up to BatchSize and running periodic
// maintenance every MaintenanceInterval commands. It recovers from a panic
// raised by InternalInvariantViolation handling, logs it, and re-panics —
// matching_engine_inl.h has no analogous recovery path, because the
// original aborts the process outright; propagating after logging gives an
// embedder the chance to decide the shard's fate instead.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	batch := make([]types.Command, BatchSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		n := w.queue.PopBatch(batch)
		if n == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			w.processOne(batch[i])
		}
	}
}

// Stop requests the run loop to exit after its current batch and blocks
// until it has. Safe to call once.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) processOne(cmd types.Command) {
	defer w.recoverInvariantViolation()

	now := w.clk.NowNS()
	switch cmd.Kind {
	case types.CmdNewOrder:
		w.processNewOrder(cmd.NewOrder, now)
	case types.CmdCancel:
		w.processCancel(cmd.Cancel, now)
	case types.CmdMarketData:
		w.processMarketData(cmd.MarketData, now)
	}

	w.processed++
	if w.processed%MaintenanceInterval == 0 {
		w.book.PeriodicMaintenance()
		w.epoch.Advance()
		w.epoch.TryReclaim()
	}
}

func (w *Worker) recoverInvariantViolation() {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		wrapped := errs.Wrap(err, errs.CodeInvariant, "shard worker invariant violation")
		w.log.Error("internal invariant violation", zap.Error(wrapped), zap.Bool("critical", errs.IsCritical(wrapped)))
		panic(r)
	}
}

func (w *Worker) processNewOrder(cmd types.NewOrderCommand, now types.Timestamp) {
	if reason, ok := w.validateShape(cmd); !ok {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{Reason: reason, Timestamp: now}})
		return
	}
	if reason, ok := w.risk.Check(cmd); !ok {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{Reason: reason, Timestamp: now}})
		return
	}

	node, err := w.pool.Acquire()
	if err != nil {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{Reason: types.ReasonPoolExhausted, Timestamp: now}})
		return
	}

	extID := w.makeExternalOrderID(node.Index, node.Generation)
	node.Hot = types.OrderHot{
		ID:        extID,
		Price:     cmd.PriceTicks,
		Qty:       cmd.Qty,
		Filled:    0,
		Timestamp: now,
		Symbol:    cmd.Symbol,
		Status:    types.StatusNew,
		Side:      cmd.Side,
		Type:      cmd.Type,
		TIF:       cmd.TIF,
	}
	clientID := cmd.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	node.Cold = types.OrderCold{UserID: cmd.UserID, ClientID: clientID}

	events := w.book.Process(node, now, make([]types.Event, 0, 4))

	if node.Hot.Qty > 0 && node.Hot.Status != types.StatusRejected {
		// Residual rests in the book; remember where to find it for Cancel.
		w.liveOrders[extID] = orderLocation{index: node.Index, generation: node.Generation}
	} else {
		// Fully filled, cancelled, or rejected: the node never needed to
		// persist past this command, so it can be handed back immediately
		// once no reader can still be holding a reference to it from an
		// event just published.
		w.epoch.Defer(node, uint64(w.epoch.Advance()))
	}

	for _, evt := range events {
		w.publish(evt)
	}
	w.publishBookUpdate(cmd.Symbol, now)
}

func (w *Worker) processCancel(cmd types.CancelCommand, now types.Timestamp) {
	loc, ok := w.liveOrders[cmd.OrderID]
	if !ok {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{OrderID: cmd.OrderID, Reason: types.ReasonUnknownOrder, Timestamp: now}})
		return
	}
	node, ok := w.pool.Get(loc.index, loc.generation)
	if !ok {
		delete(w.liveOrders, cmd.OrderID)
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{OrderID: cmd.OrderID, Reason: types.ReasonUnknownOrder, Timestamp: now}})
		return
	}
	if node.Hot.Status != types.StatusNew && node.Hot.Status != types.StatusPartiallyFilled {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{OrderID: cmd.OrderID, Reason: types.ReasonOrderAlreadyFinal, Timestamp: now}})
		return
	}
	if !w.book.Cancel(node) {
		w.publish(types.Event{Kind: types.EvtReject, Reject: types.RejectEvent{OrderID: cmd.OrderID, Reason: types.ReasonUnknownOrder, Timestamp: now}})
		return
	}
	delete(w.liveOrders, cmd.OrderID)
	w.epoch.Defer(node, uint64(w.epoch.Advance()))
	w.publishBookUpdate(node.Hot.Symbol, now)
}

// processMarketData reconciles a replayed book snapshot against the book:
// spec.md §3 reserves MarketDataFrame for the replay entrypoint, which
// "synthesizes equivalent order operations" rather than seeding the book
// directly, so each quoted level whose quantity changed is turned into a
// cancel+new-order pair against the synthetic resting order this worker
// previously placed for it; a level quoted at its old quantity is left as is.
func (w *Worker) processMarketData(cmd types.MarketDataCommand, now types.Timestamp) {
	w.reconcileSide(cmd.Symbol, types.Buy, cmd.Bids, now)
	w.reconcileSide(cmd.Symbol, types.Sell, cmd.Asks, now)
}

func (w *Worker) replaySideMap(symbol types.Symbol, side types.Side) map[types.Price]replayLevel {
	table := w.replayBid
	if side == types.Sell {
		table = w.replayAsk
	}
	m, ok := table[symbol]
	if !ok {
		m = make(map[types.Price]replayLevel)
		table[symbol] = m
	}
	return m
}

func (w *Worker) reconcileSide(symbol types.Symbol, side types.Side, levels []types.Level, now types.Timestamp) {
	existing := w.replaySideMap(symbol, side)

	target := make(map[types.Price]types.Quantity, len(levels))
	for _, lvl := range levels {
		target[lvl.Price] = lvl.Quantity
	}

	for price, rl := range existing {
		if qty, ok := target[price]; ok && qty == rl.qty {
			continue
		}
		w.synthesizeCancel(rl, now)
		delete(existing, price)
	}

	for price, qty := range target {
		if qty <= 0 {
			continue
		}
		if _, ok := existing[price]; ok {
			continue // unchanged level, left resting above
		}
		if rl, ok := w.synthesizeNewOrder(symbol, side, price, qty, now); ok {
			existing[price] = rl
		}
	}
}

// synthesizeNewOrder rests a GTC limit order at price/qty on behalf of the
// replay feeder, bypassing the risk gate: synthetic replay liquidity is
// infrastructure input, not an external order-entry submission subject to
// rate/notional limits.
func (w *Worker) synthesizeNewOrder(symbol types.Symbol, side types.Side, price types.Price, qty types.Quantity, now types.Timestamp) (replayLevel, bool) {
	if !w.book.PriceInRange(price) {
		return replayLevel{}, false
	}
	node, err := w.pool.Acquire()
	if err != nil {
		return replayLevel{}, false
	}
	extID := w.makeExternalOrderID(node.Index, node.Generation)
	node.Hot = types.OrderHot{
		ID:        extID,
		Price:     price,
		Qty:       qty,
		Timestamp: now,
		Symbol:    symbol,
		Status:    types.StatusNew,
		Side:      side,
		Type:      types.Limit,
		TIF:       types.GTC,
	}
	node.Cold = types.OrderCold{ClientID: "replay"}

	events := w.book.Process(node, now, make([]types.Event, 0, 2))
	for _, evt := range events {
		w.publish(evt)
	}
	w.publishBookUpdate(symbol, now)

	if node.Hot.Qty <= 0 {
		w.epoch.Defer(node, uint64(w.epoch.Advance()))
		return replayLevel{}, false
	}
	loc := orderLocation{index: node.Index, generation: node.Generation}
	w.liveOrders[extID] = loc
	return replayLevel{loc: loc, id: extID, qty: node.Hot.Qty}, true
}

// synthesizeCancel removes the synthetic resting order rl tracked for a
// price level that a newer frame no longer quotes at its old quantity.
func (w *Worker) synthesizeCancel(rl replayLevel, now types.Timestamp) {
	node, ok := w.pool.Get(rl.loc.index, rl.loc.generation)
	if !ok {
		delete(w.liveOrders, rl.id)
		return
	}
	if w.book.Cancel(node) {
		delete(w.liveOrders, rl.id)
		w.epoch.Defer(node, uint64(w.epoch.Advance()))
		w.publishBookUpdate(node.Hot.Symbol, now)
	}
}

func (w *Worker) validateShape(cmd types.NewOrderCommand) (types.RejectReason, bool) {
	if cmd.Side != types.Buy && cmd.Side != types.Sell {
		return types.ReasonInvalidSide, false
	}
	if cmd.TIF != types.GTC && cmd.TIF != types.IOC && cmd.TIF != types.FOK {
		return types.ReasonInvalidTIF, false
	}
	if cmd.Type == types.Limit && !w.book.PriceInRange(cmd.PriceTicks) {
		return types.ReasonPriceOutOfRange, false
	}
	return "", true
}

func (w *Worker) publish(evt types.Event) {
	switch evt.Kind {
	case types.EvtTrade:
		w.sink.OnTrade(evt.Trade)
	case types.EvtAccept:
		w.sink.OnAccept(evt.Accept)
	case types.EvtReject:
		w.sink.OnReject(evt.Reject)
	case types.EvtBookUpdate:
		w.sink.OnBookUpdate(evt.BookUpdate)
	}
}

func (w *Worker) publishBookUpdate(symbol types.Symbol, now types.Timestamp) {
	bid, hasBid := w.book.BestBid()
	ask, hasAsk := w.book.BestAsk()
	w.publish(types.Event{
		Kind: types.EvtBookUpdate,
		BookUpdate: types.BookUpdateEvent{
			Symbol:    symbol,
			BestBid:   bid,
			HasBid:    hasBid,
			BestAsk:   ask,
			HasAsk:    hasAsk,
			Timestamp: now,
		},
	})
}

// makeExternalOrderID packs shard:8 | generation:32 | index:24 into a
// uint64, matching shard.h's make_external_order_id bit layout exactly.
func (w *Worker) makeExternalOrderID(index, generation uint32) types.OrderID {
	return (uint64(uint8(w.ID)) << 56) | (uint64(generation) << 24) | uint64(index&0xFFFFFF)
}

// ExtractShard returns the shard id encoded in an external order id.
func ExtractShard(id types.OrderID) int { return int(id >> 56) }

// ExtractGeneration returns the generation encoded in an external order id.
func ExtractGeneration(id types.OrderID) uint32 { return uint32((id >> 24) & 0xFFFFFFFF) }

// ExtractIndex returns the pool index encoded in an external order id.
func ExtractIndex(id types.OrderID) uint32 { return uint32(id & 0xFFFFFF) }

// String renders a worker's identity for logs.
func (w *Worker) String() string { return fmt.Sprintf("shard-%d", w.ID) }

// Package sink defines the event sink contract (C10): the shard worker's
// only way of publishing trade/accept/reject/book-update events to the
// outside world.
//
// Grounded on include/hft/matching_engine_inl.h's engine_on_trade/
// engine_on_accept/engine_on_reject/engine_on_book_update callback-pointer
// quartet: this port keeps the same four-way split as named methods on one
// interface instead of four independent function pointers, so multiple
// independent observers (a replay recorder, a metrics exporter, a FIX
// gateway adapter) can register without the book or shard worker knowing
// about any of them concretely.
package sink

import "github.com/quantedge/matchcore/internal/engine/types"

// Sink receives the four event kinds a shard worker publishes.
// Implementations must not block: the worker calls every registered sink
// synchronously on its own goroutine, so a slow sink becomes the whole
// shard's latency.
type Sink interface {
	OnTrade(evt types.TradeEvent)
	OnAccept(evt types.AcceptEvent)
	OnReject(evt types.RejectEvent)
	OnBookUpdate(evt types.BookUpdateEvent)
}

// Funcs adapts up to four plain functions to the Sink interface; a nil
// field is a no-op for that event kind.
type Funcs struct {
	Trade      func(types.TradeEvent)
	Accept     func(types.AcceptEvent)
	Reject     func(types.RejectEvent)
	BookUpdate func(types.BookUpdateEvent)
}

func (f Funcs) OnTrade(evt types.TradeEvent) {
	if f.Trade != nil {
		f.Trade(evt)
	}
}

func (f Funcs) OnAccept(evt types.AcceptEvent) {
	if f.Accept != nil {
		f.Accept(evt)
	}
}

func (f Funcs) OnReject(evt types.RejectEvent) {
	if f.Reject != nil {
		f.Reject(evt)
	}
}

func (f Funcs) OnBookUpdate(evt types.BookUpdateEvent) {
	if f.BookUpdate != nil {
		f.BookUpdate(evt)
	}
}

// Multi fans every event out to every registered sink in fixed registration
// order. A panic in one sink is not recovered here; the shard worker's own
// recover boundary governs that.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a fan-out sink over the given sinks, preserving order.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{sinks: make([]Sink, len(sinks))}
	copy(m.sinks, sinks)
	return m
}

// Register appends sink to the fan-out list. Call only during setup, never
// while the worker is running.
func (m *Multi) Register(sink Sink) {
	m.sinks = append(m.sinks, sink)
}

func (m *Multi) OnTrade(evt types.TradeEvent) {
	for _, s := range m.sinks {
		s.OnTrade(evt)
	}
}

func (m *Multi) OnAccept(evt types.AcceptEvent) {
	for _, s := range m.sinks {
		s.OnAccept(evt)
	}
}

func (m *Multi) OnReject(evt types.RejectEvent) {
	for _, s := range m.sinks {
		s.OnReject(evt)
	}
}

func (m *Multi) OnBookUpdate(evt types.BookUpdateEvent) {
	for _, s := range m.sinks {
		s.OnBookUpdate(evt)
	}
}

// Null discards every event. It is useful as a default in tests and
// benchmarks that don't care about sink output.
type Null struct{}

func (Null) OnTrade(types.TradeEvent)           {}
func (Null) OnAccept(types.AcceptEvent)         {}
func (Null) OnReject(types.RejectEvent)         {}
func (Null) OnBookUpdate(types.BookUpdateEvent) {}

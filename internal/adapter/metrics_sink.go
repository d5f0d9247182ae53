package adapter

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/quantedge/matchcore/internal/engine/types"
)

// MetricsSink counts events by kind and logs a snapshot via zap whenever
// LogSnapshot is called. It deliberately does not depend on a metrics aggregator library:
// the specification's non-goals exclude building an observability
// aggregation layer, so this sink carries only the ambient structured-
// logging stack every other component uses, not a Prometheus registry.
type MetricsSink struct {
	log *zap.Logger

	trades      atomic.Int64
	accepts     atomic.Int64
	rejects     atomic.Int64
	bookUpdates atomic.Int64
}

// NewMetricsSink builds a MetricsSink that logs through logger.
func NewMetricsSink(logger *zap.Logger) *MetricsSink {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &MetricsSink{log: logger.With(zap.String("component", "metrics_sink"))}
}

func (m *MetricsSink) OnTrade(types.TradeEvent)           { m.trades.Add(1) }
func (m *MetricsSink) OnAccept(types.AcceptEvent)         { m.accepts.Add(1) }
func (m *MetricsSink) OnReject(types.RejectEvent)         { m.rejects.Add(1) }
func (m *MetricsSink) OnBookUpdate(types.BookUpdateEvent) { m.bookUpdates.Add(1) }

// Snapshot returns the current event counters.
type Snapshot struct {
	Trades      int64
	Accepts     int64
	Rejects     int64
	BookUpdates int64
}

// Snapshot reads the current counters without resetting them.
func (m *MetricsSink) Snapshot() Snapshot {
	return Snapshot{
		Trades:      m.trades.Load(),
		Accepts:     m.accepts.Load(),
		Rejects:     m.rejects.Load(),
		BookUpdates: m.bookUpdates.Load(),
	}
}

// LogSnapshot emits the current counters at info level. Call this from a
// maintenance ticker, never from the shard's hot path.
func (m *MetricsSink) LogSnapshot() {
	snap := m.Snapshot()
	m.log.Info("event counters",
		zap.Int64("trades", snap.Trades),
		zap.Int64("accepts", snap.Accepts),
		zap.Int64("rejects", snap.Rejects),
		zap.Int64("book_updates", snap.BookUpdates),
	)
}

// Package adapter contains the matching core's external-facing helpers:
// a CSV tick replay feeder and a metrics sink, both kept outside
// internal/engine so the engine core stays free of I/O concerns.
//
// Grounded on include/hft/tick_replay.h's CsvTickDataSource / TickRecord
// shape, reduced to the feeder role the specification actually calls for
// (driving CmdMarketData submissions into a shard's queue) rather than the
// source's full multi-mode replay engine (real-time/accelerated/step/batch
// playback, seek-to-time) — those playback-speed controls are an outer-loop
// concern for a benchmarking harness, not the matching core itself.
package adapter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/quantedge/matchcore/internal/engine/errs"
	"github.com/quantedge/matchcore/internal/engine/shard"
	"github.com/quantedge/matchcore/internal/engine/types"
)

// TickRecord is one replayed quote/trade snapshot.
type TickRecord struct {
	TimestampNS    uint64
	Symbol         types.Symbol
	BidPrice       types.Price
	AskPrice       types.Price
	BidSize        types.Quantity
	AskSize        types.Quantity
	LastTradePrice types.Price
	LastTradeSize  types.Quantity
}

// ReplayFeeder reads TickRecords from a CSV file and submits them to a
// shard as CmdMarketData commands, in file order.
//
// Expected columns: timestamp_ns,symbol,bid_price,ask_price,bid_size,
// ask_size,last_trade_price,last_trade_size. A header row is tolerated: if
// any field of the first row fails to parse as an integer, that row is
// skipped.
type ReplayFeeder struct {
	records []TickRecord
	pos     int
}

// LoadCSV reads every tick record from path into memory.
func LoadCSV(path string) (*ReplayFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeReplay, fmt.Sprintf("open %s", path))
	}
	defer f.Close()
	return loadCSV(f)
}

func loadCSV(r io.Reader) (*ReplayFeeder, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 8

	feeder := &ReplayFeeder{}
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeReplay, "read csv row")
		}
		rec, err := parseTickRow(row)
		if err != nil {
			if first {
				first = false
				continue // header row
			}
			return nil, err
		}
		first = false
		feeder.records = append(feeder.records, rec)
	}
	return feeder, nil
}

func parseTickRow(row []string) (TickRecord, error) {
	ts, err := strconv.ParseUint(row[0], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	sym, err := strconv.ParseUint(row[1], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	bidPrice, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	askPrice, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	bidSize, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	askSize, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	lastPrice, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	lastSize, err := strconv.ParseInt(row[7], 10, 64)
	if err != nil {
		return TickRecord{}, err
	}
	return TickRecord{
		TimestampNS:    ts,
		Symbol:         sym,
		BidPrice:       bidPrice,
		AskPrice:       askPrice,
		BidSize:        bidSize,
		AskSize:        askSize,
		LastTradePrice: lastPrice,
		LastTradeSize:  lastSize,
	}, nil
}

// Len returns the total number of loaded records.
func (f *ReplayFeeder) Len() int { return len(f.records) }

// Reset rewinds the feeder to its first record.
func (f *ReplayFeeder) Reset() { f.pos = 0 }

// Next returns the next tick record, advancing the cursor, and false once
// every record has been consumed.
func (f *ReplayFeeder) Next() (TickRecord, bool) {
	if f.pos >= len(f.records) {
		return TickRecord{}, false
	}
	rec := f.records[f.pos]
	f.pos++
	return rec, true
}

// FeedAll submits every remaining record to worker as a CmdMarketData
// command, stopping at the first record the ring rejects (full queue) and
// returning how many were submitted.
func (f *ReplayFeeder) FeedAll(worker *shard.Worker) int {
	submitted := 0
	for {
		rec, ok := f.Next()
		if !ok {
			break
		}
		cmd := types.Command{
			Kind: types.CmdMarketData,
			MarketData: types.MarketDataCommand{
				Symbol: rec.Symbol,
				Bids:   []types.Level{{Price: rec.BidPrice, Quantity: rec.BidSize}},
				Asks:   []types.Level{{Price: rec.AskPrice, Quantity: rec.AskSize}},
			},
		}
		if !worker.Submit(cmd) {
			f.pos--
			break
		}
		submitted++
	}
	return submitted
}

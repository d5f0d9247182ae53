// Command matchengine runs one or more matching-core shards, each owning
// its own symbol set, pool, and order book.
//
// Grounded on cmd/server/main.go's flag parsing / config load / signal-
// driven shutdown shape, replacing its HTTP service registry with a direct
// shard worker pool since the matching core has no REST surface of its
// own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantedge/matchcore/internal/adapter"
	"github.com/quantedge/matchcore/internal/engine/clock"
	engineconfig "github.com/quantedge/matchcore/internal/engine/config"
	"github.com/quantedge/matchcore/internal/engine/risk"
	"github.com/quantedge/matchcore/internal/engine/shard"
	"github.com/quantedge/matchcore/internal/engine/sink"
	"github.com/quantedge/matchcore/internal/engine/types"
)

const (
	appName    = "matchcore"
	appVersion = "v1.0.0"
)

func main() {
	var (
		configPath = flag.String("config", "", "Directory to search for matchcore.yaml")
		replayPath = flag.String("replay", "", "Optional CSV tick file to feed into shard 0 on startup")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := engineconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: config: %v\n", appName, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: logger: %v\n", appName, err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics := adapter.NewMetricsSink(logger)
	fanout := sink.NewMulti(metrics)

	workers := make([]*shard.Worker, 0, len(cfg.Shards))
	for i, shardCfg := range cfg.Shards {
		if len(shardCfg.Symbols) == 0 {
			continue
		}
		sym := shardCfg.Symbols[0]
		w := shard.New(shard.Config{
			ID:       i,
			PoolCap:  shardCfg.PoolCapacity,
			MinPrice: sym.MinPrice,
			MaxPrice: sym.MaxPrice,
			TickSize: sym.TickSize,
			Symbol:   types.Symbol(sym.Symbol),
			Queue:    shardCfg.QueueSize,
			Clock:    clock.Monotonic{},
			Sink:     fanout,
			Logger:   logger,
			Risk: risk.Config{
				GlobalMaxQty:      cfg.Risk.GlobalMaxQty,
				GlobalMaxNotional: cfg.Risk.GlobalMaxNotional,
				RatePerSec:        cfg.Risk.RatePerSec,
				Burst:             cfg.Risk.Burst,
			},
		})
		workers = append(workers, w)
	}

	if len(workers) == 0 {
		logger.Fatal("no shards configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *shard.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}

	if *replayPath != "" {
		feeder, err := adapter.LoadCSV(*replayPath)
		if err != nil {
			logger.Error("replay load failed", zap.Error(err))
		} else {
			n := feeder.FeedAll(workers[0])
			logger.Info("replay fed", zap.Int("records", n))
		}
	}

	logger.Info("matchengine started", zap.Int("shards", len(workers)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	for _, w := range workers {
		w.Stop()
	}
	wg.Wait()
	metrics.LogSnapshot()
}

func newLogger(level string) (*zap.Logger, error) {
	switch level {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

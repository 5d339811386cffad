package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/util"
)

func main() {
	var (
		strategyName = flag.String("strategy", "sma-cross", "strategy name to run")
		symbol       = flag.String("symbol", "AAPL", "symbol to backtest")
		timeframe    = flag.String("timeframe", "", "candle timeframe, e.g. 1Min, 1Day (default from config)")
		start        = flag.String("start", "", "start date (2006-01-02)")
		end          = flag.String("end", "", "end date (2006-01-02)")
		balance      = flag.Float64("balance", 0, "starting cash (default from config)")
		full         = flag.Bool("full", false, "print trades and equity history, not just the summary")
	)
	flag.Parse()

	cfgPath := "config/tradesim.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	if *timeframe == "" {
		*timeframe = cfg.Sim.DefaultTimeframe
	}
	tf, err := domain.ParseTimeframe(*timeframe)
	if err != nil {
		log.Fatalf("invalid timeframe: %v", err)
	}
	if *balance == 0 {
		*balance = cfg.Sim.DefaultBalance
	}

	startAt, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("invalid -start date: %v", err)
	}
	endAt, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatalf("invalid -end date: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	var defs *strategy.DefinitionStore
	if cfg.Storage.SQLitePath != "" {
		defs, err = strategy.NewDefinitionStore(cfg.Storage.SQLitePath, registry)
		if err != nil {
			log.Fatalf("failed to open strategy store: %v", err)
		}
		defer defs.Close()
	}
	catalog := strategy.NewCatalog(registry, defs)

	alpaca := marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)
	source := marketdata.NewCachedSource(alpaca, cfg.Storage.DataDir, logger)
	backtester := sim.NewBacktester(source, catalog, logger)

	result, err := backtester.Run(context.Background(), *strategyName, *symbol, tf, startAt, endAt, *balance)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *full {
		err = enc.Encode(result)
	} else {
		err = enc.Encode(result.Summary)
	}
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/httpapi"
	"tradesim/internal/marketdata"
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/util"
)

func main() {
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

	sessionStart, err := cfg.Sim.SessionStartOffset()
	if err != nil {
		log.Fatalf("invalid session start: %v", err)
	}
	defaultTF, err := domain.ParseTimeframe(cfg.Sim.DefaultTimeframe)
	if err != nil {
		log.Fatalf("invalid default timeframe: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	defs, err := strategy.NewDefinitionStore(cfg.Storage.SQLitePath, registry)
	if err != nil {
		log.Fatalf("failed to open strategy store: %v", err)
	}
	defer defs.Close()
	catalog := strategy.NewCatalog(registry, defs)

	alpaca := marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)
	source := marketdata.NewCachedSource(alpaca, cfg.Storage.DataDir, logger)
	stream := marketdata.NewAlpacaStream(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.StreamURL, logger)

	backtester := sim.NewBacktester(source, catalog, logger)
	manager := sim.NewManager(stream, catalog, sim.ManagerConfig{
		Timeframe:       defaultTF,
		SessionStart:    sessionStart,
		MaxWindowBars:   cfg.Sim.MaxWindowBars,
		StartingBalance: cfg.Sim.DefaultBalance,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		manager.RunLoop(ctx)
		close(loopDone)
	}()

	api := httpapi.NewServer(backtester, manager, catalog, defs, httpapi.Defaults{
		Timeframe: defaultTF,
		Balance:   cfg.Sim.DefaultBalance,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: api.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("tradesim-server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}

	<-loopDone
	logger.Info("tradesim-server stopped")
}

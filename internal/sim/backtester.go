package sim

import (
	"context"
	"log/slog"
	"time"

	"tradesim/internal/broker"
	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/metrics"
	"tradesim/internal/strategy"
)

// Result is the outcome of a simulation run, shared by backtests and live
// runners.
type Result struct {
	Strategy   string               `json:"strategy"`
	Symbol     string               `json:"symbol"`
	State      string               `json:"state"`
	Summary    domain.Summary       `json:"summary"`
	Trades     []domain.TradeRecord `json:"trades"`
	PnLHistory []metrics.Snapshot   `json:"pnlHistory"`
}

// Backtester replays historical candles through a strategy against a virtual
// broker. Each Run is independent; a Backtester can serve concurrent runs.
type Backtester struct {
	source  marketdata.Source
	catalog *strategy.Catalog
	log     *slog.Logger
}

// NewBacktester creates a Backtester reading from source and resolving
// strategy names through catalog.
func NewBacktester(source marketdata.Source, catalog *strategy.Catalog, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		source:  source,
		catalog: catalog,
		log:     log.With("component", "backtester"),
	}
}

// Run executes one backtest of strategyName on symbol over [start, end] with
// the given starting balance. For every bar the portfolio is snapshotted
// first and the strategy evaluated second, so the recorded equity curve never
// includes same-bar trades.
func (b *Backtester) Run(ctx context.Context, strategyName, symbol string, tf domain.Timeframe, start, end time.Time, startingBalance float64) (*Result, error) {
	strat, err := b.catalog.Build(strategyName)
	if err != nil {
		return nil, err
	}

	candles, err := b.source.FetchBars(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, err
	}

	bk := broker.NewSimBroker(startingBalance, b.log)
	tr := bk.Tracker()
	lookback := strat.MaxLookback()

	b.log.Info("backtest started",
		"strategy", strategyName, "symbol", symbol, "timeframe", tf.String(),
		"bars", len(candles), "balance", startingBalance)

	for i, candle := range candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tr.Record(candle.Start, map[string]float64{symbol: candle.Close})

		first := i + 1 - lookback
		if first < 0 {
			continue
		}
		if sig := strat.GenerateSignal(candles[first : i+1]); sig != nil {
			bk.Execute(symbol, sig)
		}
	}

	lastClose := candles[len(candles)-1].Close
	prices := map[string]float64{symbol: lastClose}
	summary := buildSummary(tr, len(bk.Trades()), prices, startingBalance, tf)

	b.log.Info("backtest finished",
		"strategy", strategyName, "symbol", symbol,
		"trades", summary.TradesExecuted, "portfolioValue", summary.PortfolioValue)

	return &Result{
		Strategy:   strategyName,
		Symbol:     symbol,
		State:      StateCompleted.String(),
		Summary:    summary,
		Trades:     bk.Trades(),
		PnLHistory: tr.History(),
	}, nil
}

package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/broker"
	"tradesim/internal/domain"
	"tradesim/internal/feed"
	"tradesim/internal/marketdata"
	"tradesim/internal/strategy"
)

// Runner drives one strategy against a live event feed. Incoming bars and
// trades are folded into session-aligned candles, the portfolio snapshotted,
// and the strategy evaluated on the updated window. A runner is single-use:
// once it leaves RUNNING it never runs again.
type Runner struct {
	name    string
	symbol  string
	strat   strategy.Strategy
	tf      domain.Timeframe
	agg     *feed.Aggregator
	broker  *broker.SimBroker
	log     *slog.Logger
	balance float64

	state   atomic.Int32
	stopped atomic.Bool

	// aggMu guards agg: results are queried while events are streaming in.
	aggMu sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	faults atomic.Int64
}

// NewRunner creates a Runner in the INITIALIZED state.
func NewRunner(name, symbol string, strat strategy.Strategy, tf domain.Timeframe, sessionStart time.Duration, maxBars int, startingBalance float64, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("runner", name, "symbol", symbol)
	return &Runner{
		name:    name,
		symbol:  symbol,
		strat:   strat,
		tf:      tf,
		agg:     feed.NewAggregator(tf, sessionStart, maxBars, log),
		broker:  broker.NewSimBroker(startingBalance, log),
		balance: startingBalance,
		log:     log,
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() RunState {
	return RunState(r.state.Load())
}

// Run streams live events through the strategy until the feed ends or Stop
// is called. It returns the feed error when the runner fails, nil otherwise.
func (r *Runner) Run(ctx context.Context, src marketdata.LiveSource) error {
	if !r.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning)) {
		return fmt.Errorf("runner %s already started (state %s)", r.name, r.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()
	defer cancel()

	r.log.Info("runner started", "timeframe", r.tf.String(), "balance", r.balance)

	err := src.Stream(ctx, r.symbol, r.handleBar, r.handleTick)

	// Cancellation, whether via Stop or a parent shutdown, is a stop request.
	if r.stopped.Load() || errors.Is(err, context.Canceled) {
		r.state.Store(int32(StateStopped))
		r.log.Info("runner stopped", "faults", r.faults.Load())
		return nil
	}
	if err != nil {
		r.state.Store(int32(StateFailed))
		r.log.Error("runner failed", "err", err)
		return err
	}
	r.state.Store(int32(StateCompleted))
	r.log.Info("runner completed")
	return nil
}

// Stop requests termination. It is idempotent and safe to call from any
// goroutine; the runner transitions to STOPPED once its stream returns.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	r.cancelMu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancelMu.Unlock()
}

// handleBar snapshots the portfolio on every bar, then evaluates the strategy
// once the bar completes a candle, matching the record-then-decide order of
// historical replays.
func (r *Runner) handleBar(bar domain.Candle) {
	defer r.recoverFault()
	r.aggMu.Lock()
	_, ok := r.agg.AddBar(bar)
	r.aggMu.Unlock()
	r.broker.Tracker().Record(bar.Start, r.prices())
	if ok {
		r.evaluate()
	}
}

// handleTick snapshots and evaluates on every accepted tick; stale ticks are
// dropped by the aggregator and leave no trace.
func (r *Runner) handleTick(t domain.Tick) {
	defer r.recoverFault()
	r.aggMu.Lock()
	_, ok := r.agg.AddTick(t)
	r.aggMu.Unlock()
	if !ok {
		return
	}
	r.broker.Tracker().Record(t.Timestamp, r.prices())
	r.evaluate()
}

// evaluate runs the strategy over the current candle window and routes any
// signal to the broker.
func (r *Runner) evaluate() {
	r.aggMu.Lock()
	window := r.agg.Window(r.symbol, r.strat.MaxLookback())
	r.aggMu.Unlock()
	if len(window) < r.strat.MaxLookback() {
		return
	}
	if sig := r.strat.GenerateSignal(window); sig != nil {
		r.broker.Execute(r.symbol, sig)
	}
}

func (r *Runner) prices() map[string]float64 {
	r.aggMu.Lock()
	price, ok := r.agg.LastPrice(r.symbol)
	r.aggMu.Unlock()
	if ok {
		return map[string]float64{r.symbol: price}
	}
	return nil
}

// recoverFault absorbs a panicking event handler. A single bad event is
// logged and skipped; the runner keeps processing the stream.
func (r *Runner) recoverFault() {
	if v := recover(); v != nil {
		r.faults.Add(1)
		r.log.Error("event handler fault recovered", "err", v)
	}
}

// Results reports the runner's state and performance so far. It is safe to
// call while the runner is processing events.
func (r *Runner) Results() *Result {
	tr := r.broker.Tracker()
	trades := r.broker.Trades()
	return &Result{
		Strategy:   r.name,
		Symbol:     r.symbol,
		State:      r.State().String(),
		Summary:    buildSummary(tr, len(trades), r.prices(), r.balance, r.tf),
		Trades:     trades,
		PnLHistory: tr.History(),
	}
}

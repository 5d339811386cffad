package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/strategy"
)

var tfMin = domain.Timeframe{N: 1, Unit: domain.UnitMinute}

func barSeries(closes ...float64) []domain.Candle {
	start := time.Date(2023, 1, 3, 9, 30, 0, 0, time.UTC)
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Symbol: "AAPL",
			Start:  start.Add(time.Duration(i) * time.Minute),
			Open:   c, High: c, Low: c, Close: c,
			Volume: 100,
		}
	}
	return out
}

type fixedSource struct {
	candles []domain.Candle
	err     error
}

func (s *fixedSource) FetchBars(context.Context, string, domain.Timeframe, time.Time, time.Time) ([]domain.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

// scriptedStrategy emits pre-planned signals keyed by the last candle's start
// time.
type scriptedStrategy struct {
	lookback    int
	signals     map[time.Time]domain.Signal
	evaluations int
}

func (s *scriptedStrategy) Name() string     { return "scripted" }
func (s *scriptedStrategy) MaxLookback() int { return s.lookback }
func (s *scriptedStrategy) GenerateSignal(window []domain.Candle) *domain.Signal {
	s.evaluations++
	last := window[len(window)-1]
	if sig, ok := s.signals[last.Start]; ok {
		sig.Timestamp = last.Start
		sig.Price = last.Close
		return &sig
	}
	return nil
}

func scriptedCatalog(strat strategy.Strategy) *strategy.Catalog {
	r := strategy.NewRegistry()
	r.Register("scripted", func([]byte) (strategy.Strategy, error) { return strat, nil })
	return strategy.NewCatalog(r, nil)
}

func TestBacktestRunScenario(t *testing.T) {
	candles := barSeries(100, 100, 100, 110, 120, 120)
	buyAt := candles[2].Start
	sellAt := candles[4].Start

	strat := &scriptedStrategy{
		lookback: 1,
		signals: map[time.Time]domain.Signal{
			buyAt:  {Action: domain.SideBuy, Allocation: 0.5},
			sellAt: {Action: domain.SideSell, Allocation: 1.0},
		},
	}
	b := NewBacktester(&fixedSource{candles: candles}, scriptedCatalog(strat), nil)

	res, err := b.Run(context.Background(), "scripted", "AAPL", tfMin, candles[0].Start, candles[5].Start, 10000)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.State != "COMPLETED" {
		t.Errorf("state = %q, want COMPLETED", res.State)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(res.Trades))
	}
	// Buy 50 shares at 100, sell all at 120: realised = 20 * 50 = 1000.
	if res.Summary.RealisedPnL != 1000 {
		t.Errorf("realised pnl = %v, want 1000", res.Summary.RealisedPnL)
	}
	if res.Summary.FinalCash != 11000 {
		t.Errorf("final cash = %v, want 11000", res.Summary.FinalCash)
	}
	if res.Summary.TotalReturnPct != 10 {
		t.Errorf("total return = %v, want 10", res.Summary.TotalReturnPct)
	}
	if res.Summary.WinRatePct != 100 {
		t.Errorf("win rate = %v, want 100", res.Summary.WinRatePct)
	}
}

func TestBacktestRecordsBeforeEvaluating(t *testing.T) {
	candles := barSeries(100, 100, 100)
	buyAt := candles[1].Start

	strat := &scriptedStrategy{
		lookback: 1,
		signals:  map[time.Time]domain.Signal{buyAt: {Action: domain.SideBuy, Allocation: 1.0}},
	}
	b := NewBacktester(&fixedSource{candles: candles}, scriptedCatalog(strat), nil)

	res, err := b.Run(context.Background(), "scripted", "AAPL", tfMin, candles[0].Start, candles[2].Start, 1000)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.PnLHistory) != 3 {
		t.Fatalf("history length = %d, want one snapshot per bar", len(res.PnLHistory))
	}
	// The snapshot taken at the buy bar predates the trade.
	if got := res.PnLHistory[1].Cash; got != 1000 {
		t.Errorf("cash in snapshot at buy bar = %v, want pre-trade 1000", got)
	}
	if got := res.PnLHistory[2].Cash; got >= 1000 {
		t.Errorf("cash in next snapshot = %v, want post-trade < 1000", got)
	}
}

func TestBacktestWindowNeverExceedsLookback(t *testing.T) {
	candles := barSeries(1, 2, 3, 4, 5, 6)

	var maxSeen int
	r := strategy.NewRegistry()
	r.Register("probe", func([]byte) (strategy.Strategy, error) {
		return &probeStrategy{lookback: 3, maxSeen: &maxSeen}, nil
	})
	b := NewBacktester(&fixedSource{candles: candles}, strategy.NewCatalog(r, nil), nil)

	if _, err := b.Run(context.Background(), "probe", "AAPL", tfMin, candles[0].Start, candles[5].Start, 1000); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if maxSeen != 3 {
		t.Errorf("largest window seen = %d, want exactly 3", maxSeen)
	}
}

type probeStrategy struct {
	lookback int
	maxSeen  *int
}

func (p *probeStrategy) Name() string     { return "probe" }
func (p *probeStrategy) MaxLookback() int { return p.lookback }
func (p *probeStrategy) GenerateSignal(window []domain.Candle) *domain.Signal {
	if len(window) > *p.maxSeen {
		*p.maxSeen = len(window)
	}
	return nil
}

func TestBacktestErrors(t *testing.T) {
	strat := &scriptedStrategy{lookback: 1}
	ctx := context.Background()
	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)

	b := NewBacktester(&fixedSource{err: marketdata.ErrNoData}, scriptedCatalog(strat), nil)
	if _, err := b.Run(ctx, "scripted", "AAPL", tfMin, start, start, 1000); !errors.Is(err, marketdata.ErrNoData) {
		t.Errorf("no-data error = %v, want ErrNoData", err)
	}

	b = NewBacktester(&fixedSource{candles: barSeries(1)}, scriptedCatalog(strat), nil)
	if _, err := b.Run(ctx, "ghost", "AAPL", tfMin, start, start, 1000); !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Errorf("unknown strategy error = %v, want ErrUnknownStrategy", err)
	}
}

func TestRunStateString(t *testing.T) {
	cases := map[RunState]string{
		StateInitialized: "INITIALIZED",
		StateRunning:     "RUNNING",
		StateCompleted:   "COMPLETED",
		StateStopped:     "STOPPED",
		StateFailed:      "FAILED",
		RunState(99):     "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("RunState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

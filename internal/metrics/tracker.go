// Package metrics accumulates a simulation run's portfolio history and
// derives performance statistics from it.
package metrics

import (
	"math"
	"sync"
	"time"

	"tradesim/internal/domain"
)

// Snapshot is one point of the portfolio history, appended once per processed
// event. Snapshots are never mutated after insertion.
type Snapshot struct {
	Timestamp      time.Time                  `json:"timestamp"`
	Cash           float64                    `json:"cash"`
	Positions      map[string]domain.Position `json:"positions"`
	PortfolioValue float64                    `json:"portfolioValue"`
	RealisedPnL    float64                    `json:"realisedPnl"`
	UnrealisedPnL  float64                    `json:"unrealisedPnl"`
}

// Tracker maintains the running cash/position mirror and the snapshot series
// for a single simulation run. One tracker exists per run; it is never shared
// across runs. Methods are safe for concurrent use because live runs are
// queried while events are still being processed.
type Tracker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]domain.Position
	realised  float64
	history   []Snapshot
}

// NewTracker creates a Tracker starting with the given cash balance.
func NewTracker(startingBalance float64) *Tracker {
	return &Tracker{
		cash:      startingBalance,
		positions: make(map[string]domain.Position),
	}
}

// SetCash updates the tracked cash balance.
func (t *Tracker) SetCash(cash float64) {
	t.mu.Lock()
	t.cash = cash
	t.mu.Unlock()
}

// SetPositions replaces the tracked position snapshot with a copy.
func (t *Tracker) SetPositions(positions map[string]domain.Position) {
	copied := make(map[string]domain.Position, len(positions))
	for sym, pos := range positions {
		copied[sym] = pos
	}
	t.mu.Lock()
	t.positions = copied
	t.mu.Unlock()
}

// AddRealised adds a completed trade's gain or loss to the realised-P&L
// accumulator.
func (t *Tracker) AddRealised(delta float64) {
	t.mu.Lock()
	t.realised += delta
	t.mu.Unlock()
}

// Cash returns the tracked cash balance.
func (t *Tracker) Cash() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cash
}

// RealisedPnL returns the accumulated realised profit and loss.
func (t *Tracker) RealisedPnL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realised
}

// UnrealisedPnL computes the paper profit on open positions at the given
// market prices, falling back to a position's average price when the symbol
// has no quote (contributing zero for that position).
func (t *Tracker) UnrealisedPnL(prices map[string]float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unrealisedLocked(prices)
}

func (t *Tracker) unrealisedLocked(prices map[string]float64) float64 {
	var total float64
	for sym, pos := range t.positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.AvgPrice
		}
		total += (price - pos.AvgPrice) * pos.Quantity
	}
	return total
}

// PortfolioValue computes cash plus the marked value of open positions, with
// the same average-price fallback as UnrealisedPnL.
func (t *Tracker) PortfolioValue(prices map[string]float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valueLocked(prices)
}

func (t *Tracker) valueLocked(prices map[string]float64) float64 {
	value := t.cash
	for sym, pos := range t.positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.AvgPrice
		}
		value += pos.Quantity * price
	}
	return value
}

// Record appends one snapshot of the portfolio at the given timestamp and
// market prices.
func (t *Tracker) Record(ts time.Time, prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	positions := make(map[string]domain.Position, len(t.positions))
	for sym, pos := range t.positions {
		positions[sym] = pos
	}
	t.history = append(t.history, Snapshot{
		Timestamp:      ts,
		Cash:           t.cash,
		Positions:      positions,
		PortfolioValue: t.valueLocked(prices),
		RealisedPnL:    t.realised,
		UnrealisedPnL:  t.unrealisedLocked(prices),
	})
}

// History returns a copy of the snapshot series.
func (t *Tracker) History() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, len(t.history))
	copy(out, t.history)
	return out
}

// SharpeRatio computes the annualized Sharpe ratio of the portfolio-value
// percentage-change series, with the first change defined as zero. Returns 0
// when fewer than two snapshots exist or the return series has no variance.
func (t *Tracker) SharpeRatio(tf domain.Timeframe) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) < 2 {
		return 0
	}
	returns := make([]float64, len(t.history))
	for i := 1; i < len(t.history); i++ {
		prev := t.history[i-1].PortfolioValue
		if prev != 0 {
			returns[i] = (t.history[i].PortfolioValue - prev) / prev
		}
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	// Sample standard deviation.
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(tf.PeriodsPerYear())
}

// MaxDrawdown returns the largest peak-to-trough decline of the
// portfolio-value series as a non-positive fraction, or 0 on an empty series.
func (t *Tracker) MaxDrawdown() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return 0
	}
	var minDD float64
	peak := t.history[0].PortfolioValue
	for _, s := range t.history {
		if s.PortfolioValue > peak {
			peak = s.PortfolioValue
		}
		if peak != 0 {
			if dd := (s.PortfolioValue - peak) / peak; dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

// ProfitFactor returns the ratio of summed realised gains to summed realised
// losses across consecutive snapshots: +Inf when there are gains and no
// losses, 0 when there are neither.
func (t *Tracker) ProfitFactor() float64 {
	var gains, losses float64
	for _, d := range t.realisedDeltas() {
		if d > 0 {
			gains += d
		} else if d < 0 {
			losses -= d
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}

// WinRate returns the fraction of non-zero realised-P&L deltas that are
// positive, or 0 when there are none.
func (t *Tracker) WinRate() float64 {
	var wins, total int
	for _, d := range t.realisedDeltas() {
		if d > 0 {
			wins++
		}
		if d != 0 {
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func (t *Tracker) realisedDeltas() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(t.history)-1)
	for i := 1; i < len(t.history); i++ {
		deltas = append(deltas, t.history[i].RealisedPnL-t.history[i-1].RealisedPnL)
	}
	return deltas
}

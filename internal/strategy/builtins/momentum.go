package builtins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*MomentumBreakout)(nil)

// MomentumBreakoutParams configures the breakout strategy.
type MomentumBreakoutParams struct {
	LookbackPeriod int     `yaml:"lookback_period"`
	BuyPercent     float64 `yaml:"buy_percent"`
	SellPercent    float64 `yaml:"sell_percent"`
}

// MomentumBreakout buys when the latest close breaks above the highest close
// of the preceding lookback window and sells when it breaks below the lowest.
// The breakout window deliberately excludes the current candle so a new
// extreme can actually trigger.
type MomentumBreakout struct {
	params MomentumBreakoutParams
}

// NewMomentumBreakout builds a MomentumBreakout from YAML parameters, filling
// defaults for any field left unset.
func NewMomentumBreakout(params []byte) (strategy.Strategy, error) {
	p := MomentumBreakoutParams{
		LookbackPeriod: 20,
		BuyPercent:     0.01,
		SellPercent:    1.0,
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("parsing momentum-breakout params: %w", err)
		}
	}
	if p.LookbackPeriod <= 0 {
		return nil, fmt.Errorf("momentum-breakout lookback must be positive, got %d", p.LookbackPeriod)
	}
	return &MomentumBreakout{params: p}, nil
}

func (s *MomentumBreakout) Name() string { return "momentum-breakout" }

// MaxLookback is the breakout window plus the candle under evaluation.
func (s *MomentumBreakout) MaxLookback() int { return s.params.LookbackPeriod + 1 }

func (s *MomentumBreakout) GenerateSignal(window []domain.Candle) *domain.Signal {
	if len(window) < s.MaxLookback() {
		return nil
	}
	last := window[len(window)-1]
	prior := window[len(window)-1-s.params.LookbackPeriod : len(window)-1]

	high, low := prior[0].Close, prior[0].Close
	for _, c := range prior[1:] {
		if c.Close > high {
			high = c.Close
		}
		if c.Close < low {
			low = c.Close
		}
	}

	switch {
	case last.Close > high:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideBuy, Allocation: s.params.BuyPercent}
	case last.Close < low:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideSell, Allocation: s.params.SellPercent}
	}
	return nil
}

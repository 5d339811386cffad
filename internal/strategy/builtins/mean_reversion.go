package builtins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*MeanReversion)(nil)

// MeanReversionParams configures the mean-reversion strategy.
type MeanReversionParams struct {
	Window      int     `yaml:"window"`
	Threshold   float64 `yaml:"threshold"`
	BuyPercent  float64 `yaml:"buy_percent"`
	SellPercent float64 `yaml:"sell_percent"`
}

// MeanReversion buys when the latest close deviates below the rolling mean of
// closes by at least the threshold fraction and sells on the symmetric
// deviation above it.
type MeanReversion struct {
	params MeanReversionParams
}

// NewMeanReversion builds a MeanReversion from YAML parameters, filling
// defaults for any field left unset.
func NewMeanReversion(params []byte) (strategy.Strategy, error) {
	p := MeanReversionParams{
		Window:      10,
		Threshold:   0.005,
		BuyPercent:  0.01,
		SellPercent: 1.0,
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("parsing mean-reversion params: %w", err)
		}
	}
	if p.Window <= 0 {
		return nil, fmt.Errorf("mean-reversion window must be positive, got %d", p.Window)
	}
	if p.Threshold <= 0 {
		return nil, fmt.Errorf("mean-reversion threshold must be positive, got %v", p.Threshold)
	}
	return &MeanReversion{params: p}, nil
}

func (s *MeanReversion) Name() string { return "mean-reversion" }

func (s *MeanReversion) MaxLookback() int { return s.params.Window }

func (s *MeanReversion) GenerateSignal(window []domain.Candle) *domain.Signal {
	if len(window) < s.params.Window {
		return nil
	}
	last := window[len(window)-1]
	ma := meanClose(window[len(window)-s.params.Window:])
	if ma == 0 {
		return nil
	}

	deviation := (last.Close - ma) / ma
	switch {
	case deviation <= -s.params.Threshold:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideBuy, Allocation: s.params.BuyPercent}
	case deviation >= s.params.Threshold:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideSell, Allocation: s.params.SellPercent}
	}
	return nil
}

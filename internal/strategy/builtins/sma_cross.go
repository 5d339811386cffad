package builtins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*SMACross)(nil)

// SMACrossParams configures the moving-average crossover strategy.
type SMACrossParams struct {
	ShortWindow int     `yaml:"short_window"`
	LongWindow  int     `yaml:"long_window"`
	BuyPercent  float64 `yaml:"buy_percent"`
	SellPercent float64 `yaml:"sell_percent"`
}

// SMACross buys while the short moving average of closes sits above the long
// one and sells while it sits below.
type SMACross struct {
	params SMACrossParams
}

// NewSMACross builds an SMACross from YAML parameters, filling defaults for
// any field left unset.
func NewSMACross(params []byte) (strategy.Strategy, error) {
	p := SMACrossParams{
		ShortWindow: 5,
		LongWindow:  20,
		BuyPercent:  0.01,
		SellPercent: 1.0,
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("parsing sma-cross params: %w", err)
		}
	}
	if p.ShortWindow <= 0 || p.LongWindow <= 0 {
		return nil, fmt.Errorf("sma-cross windows must be positive, got short=%d long=%d", p.ShortWindow, p.LongWindow)
	}
	if p.ShortWindow >= p.LongWindow {
		return nil, fmt.Errorf("sma-cross short window %d must be smaller than long window %d", p.ShortWindow, p.LongWindow)
	}
	return &SMACross{params: p}, nil
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) MaxLookback() int { return s.params.LongWindow }

func (s *SMACross) GenerateSignal(window []domain.Candle) *domain.Signal {
	if len(window) < s.params.LongWindow {
		return nil
	}
	last := window[len(window)-1]
	shortMA := meanClose(window[len(window)-s.params.ShortWindow:])
	longMA := meanClose(window[len(window)-s.params.LongWindow:])

	switch {
	case shortMA > longMA:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideBuy, Allocation: s.params.BuyPercent}
	case shortMA < longMA:
		return &domain.Signal{Timestamp: last.Start, Price: last.Close, Action: domain.SideSell, Allocation: s.params.SellPercent}
	}
	return nil
}

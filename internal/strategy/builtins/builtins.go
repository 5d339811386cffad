// Package builtins provides the strategies that ship with the simulator.
package builtins

import (
	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Register adds every built-in strategy factory to r.
func Register(r *strategy.Registry) {
	r.Register("sma-cross", NewSMACross)
	r.Register("momentum-breakout", NewMomentumBreakout)
	r.Register("mean-reversion", NewMeanReversion)
}

// meanClose averages the closing prices of candles.
func meanClose(candles []domain.Candle) float64 {
	var sum float64
	for _, c := range candles {
		sum += c.Close
	}
	return sum / float64(len(candles))
}

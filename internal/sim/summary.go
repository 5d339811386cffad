package sim

import (
	"math"

	"tradesim/internal/domain"
	"tradesim/internal/metrics"
)

// buildSummary derives the end-of-run report from the tracker at the given
// final market prices. All values are rounded to two decimal places;
// fractions are reported as percentages.
func buildSummary(tr *metrics.Tracker, tradeCount int, prices map[string]float64, startingBalance float64, tf domain.Timeframe) domain.Summary {
	value := tr.PortfolioValue(prices)

	var totalReturn float64
	if startingBalance != 0 {
		totalReturn = (value - startingBalance) / startingBalance * 100
	}

	return domain.Summary{
		FinalCash:      round2(tr.Cash()),
		PortfolioValue: round2(value),
		RealisedPnL:    round2(tr.RealisedPnL()),
		UnrealisedPnL:  round2(tr.UnrealisedPnL(prices)),
		TotalReturnPct: round2(totalReturn),
		TradesExecuted: tradeCount,
		WinRatePct:     round2(tr.WinRate() * 100),
		SharpeRatio:    round2(tr.SharpeRatio(tf)),
		MaxDrawdownPct: round2(tr.MaxDrawdown() * 100),
		ProfitFactor:   domain.JSONFloat(round2(tr.ProfitFactor())),
	}
}

func round2(x float64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	return math.Round(x*100) / 100
}

// Package domain defines the core value types shared across the simulation
// engine: candles, ticks, signals, positions, trade records, and summaries.
package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Side identifies the direction of a trade or signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Candle is a fixed-duration OHLCV aggregate for one symbol. Its identity is
// (Symbol, Start). While the bucket is open the aggregator mutates the candle
// in place; once a newer bucket starts it is immutable.
type Candle struct {
	Symbol string    `json:"symbol"`
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is a single trade print.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal is a strategy's trade decision for one evaluation point. Allocation
// is the fraction of available cash (buy) or held quantity (sell) to trade,
// in (0, 1]. Signals are ephemeral and never persisted.
type Signal struct {
	Timestamp  time.Time `json:"timestamp"`
	Price      float64   `json:"price"`
	Action     Side      `json:"action"`
	Allocation float64   `json:"allocation"`
}

// Position is an open holding. Quantity is always positive; the position is
// deleted when its quantity reaches zero. AvgPrice is the cost-weighted
// average entry price across open lots.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avgPrice"`
}

// TradeRecord is one executed virtual trade. Records are append-only and
// ordered by execution time.
type TradeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
}

// JSONFloat is a float64 that stays JSON-encodable when non-finite. Profit
// factor is +Inf when a run has gains and no losses.
type JSONFloat float64

// MarshalJSON encodes non-finite values as strings.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts both numbers and the string forms written by
// MarshalJSON.
func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*f = JSONFloat(math.Inf(1))
		return nil
	case `"-inf"`:
		*f = JSONFloat(math.Inf(-1))
		return nil
	case `"nan"`:
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// Summary is the end-of-run performance report produced by both execution
// modes. All values are rounded to two decimal places.
type Summary struct {
	FinalCash      float64   `json:"finalCash"`
	PortfolioValue float64   `json:"portfolioValue"`
	RealisedPnL    float64   `json:"realisedPnl"`
	UnrealisedPnL  float64   `json:"unrealisedPnl"`
	TotalReturnPct float64   `json:"totalReturnPct"`
	TradesExecuted int       `json:"tradesExecuted"`
	WinRatePct     float64   `json:"winRatePct"`
	SharpeRatio    float64   `json:"sharpeRatio"`
	MaxDrawdownPct float64   `json:"maxDrawdownPct"`
	ProfitFactor   JSONFloat `json:"profitFactor"`
}

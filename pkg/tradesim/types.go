package tradesim

import (
	"encoding/json"
	"math"
	"time"
)

// Definition is a stored user strategy definition: a registered strategy kind
// plus a YAML parameter payload under a unique name.
type Definition struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Params    string    `json:"params"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StrategiesResponse lists every resolvable strategy name plus the stored
// user definitions.
type StrategiesResponse struct {
	Strategies  []string     `json:"strategies"`
	Definitions []Definition `json:"definitions"`
}

// BacktestRequest is the body for POST /api/backtest. Start and End accept
// either 2006-01-02 dates or RFC 3339 timestamps. Timeframe and Balance fall
// back to the server defaults when omitted.
type BacktestRequest struct {
	Strategy  string  `json:"strategy"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Balance   float64 `json:"balance"`
}

// EnableRequest is the body for POST /api/live/enable. Timeframe and Balance
// fall back to the server defaults when omitted.
type EnableRequest struct {
	Strategy  string  `json:"strategy"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Balance   float64 `json:"balance"`
}

// Position is an open holding within a run snapshot.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avgPrice"`
}

// Trade is one executed virtual trade.
type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
}

// Snapshot is one point on a run's equity curve.
type Snapshot struct {
	Timestamp      time.Time           `json:"timestamp"`
	Cash           float64             `json:"cash"`
	Positions      map[string]Position `json:"positions"`
	PortfolioValue float64             `json:"portfolioValue"`
	RealisedPnL    float64             `json:"realisedPnl"`
	UnrealisedPnL  float64             `json:"unrealisedPnl"`
}

// Float is a float64 that round-trips the server's string encoding of
// non-finite values. Profit factor is +Inf on runs with gains and no losses.
type Float float64

// MarshalJSON encodes non-finite values as strings.
func (f Float) MarshalJSON() ([]byte, error) {
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
func (f *Float) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*f = Float(math.Inf(1))
		return nil
	case `"-inf"`:
		*f = Float(math.Inf(-1))
		return nil
	case `"nan"`:
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Summary is the end-of-run performance report.
type Summary struct {
	FinalCash      float64 `json:"finalCash"`
	PortfolioValue float64 `json:"portfolioValue"`
	RealisedPnL    float64 `json:"realisedPnl"`
	UnrealisedPnL  float64 `json:"unrealisedPnl"`
	TotalReturnPct float64 `json:"totalReturnPct"`
	TradesExecuted int     `json:"tradesExecuted"`
	WinRatePct     float64 `json:"winRatePct"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	ProfitFactor   Float   `json:"profitFactor"`
}

// Result is the outcome of a backtest or the progress of a live run.
type Result struct {
	Strategy   string     `json:"strategy"`
	Symbol     string     `json:"symbol"`
	State      string     `json:"state"`
	Summary    Summary    `json:"summary"`
	Trades     []Trade    `json:"trades"`
	PnLHistory []Snapshot `json:"pnlHistory"`
}

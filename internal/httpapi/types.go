package httpapi

import (
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
)

// DefinitionRequest is the body for creating or editing a strategy
// definition. Params is a YAML document.
type DefinitionRequest struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Params string `json:"params"`
}

// StrategiesResponse lists every resolvable strategy name plus the stored
// user definitions.
type StrategiesResponse struct {
	Strategies  []string              `json:"strategies"`
	Definitions []strategy.Definition `json:"definitions"`
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

// LiveResultsResponse maps strategy names to their current results.
type LiveResultsResponse struct {
	Results map[string]*sim.Result `json:"results"`
}

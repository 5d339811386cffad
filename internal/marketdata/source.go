// Package marketdata provides historical and live market data sources backed
// by the Alpaca API, with a Parquet read-through cache for historical bars.
package marketdata

import (
	"context"
	"errors"
	"time"

	"tradesim/internal/domain"
)

// ErrNoData reports that a historical query matched no bars at all.
var ErrNoData = errors.New("no market data for the requested range")

// Source fetches historical candles for one symbol and time range.
type Source interface {
	FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error)
}

// BarHandler receives one finished minute bar from a live feed.
type BarHandler func(domain.Candle)

// TickHandler receives one trade print from a live feed.
type TickHandler func(domain.Tick)

// LiveSource streams real-time market events for one symbol. Stream blocks
// until ctx is cancelled or the feed terminates.
type LiveSource interface {
	Stream(ctx context.Context, symbol string, onBar BarHandler, onTick TickHandler) error
}

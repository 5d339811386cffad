package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradesim/internal/domain"
)

var _ Source = (*CachedSource)(nil)

// barRecord is the on-disk Parquet row for one cached candle.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// CachedSource wraps a Source with a read-through Parquet cache keyed on the
// exact query. Repeating a backtest over the same range never hits the API
// twice. Empty results are not cached.
type CachedSource struct {
	inner   Source
	dataDir string
	log     *slog.Logger
}

// NewCachedSource creates a CachedSource writing under dataDir.
func NewCachedSource(inner Source, dataDir string, log *slog.Logger) *CachedSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachedSource{
		inner:   inner,
		dataDir: dataDir,
		log:     log.With("component", "bar-cache"),
	}
}

// FetchBars returns cached candles when the exact query was fetched before,
// otherwise delegates to the wrapped source and stores the result. Cache
// write failures are logged and the fresh data returned anyway.
func (c *CachedSource) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	path := c.barPath(symbol, tf, start, end)

	if records, err := parquet.ReadFile[barRecord](path); err == nil {
		c.log.Debug("cache hit", "symbol", symbol, "path", path, "count", len(records))
		candles := make([]domain.Candle, len(records))
		for i, r := range records {
			candles[i] = domain.Candle{
				Symbol: r.Symbol,
				Start:  time.UnixMilli(r.Timestamp).UTC(),
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			}
		}
		return candles, nil
	}

	candles, err := c.inner.FetchBars(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.write(path, candles); err != nil {
		c.log.Warn("cache write failed", "path", path, "err", err)
	}
	return candles, nil
}

func (c *CachedSource) write(path string, candles []domain.Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]barRecord, len(candles))
	for i, cd := range candles {
		records[i] = barRecord{
			Symbol:    cd.Symbol,
			Timestamp: cd.Start.UnixMilli(),
			Open:      cd.Open,
			High:      cd.High,
			Low:       cd.Low,
			Close:     cd.Close,
			Volume:    cd.Volume,
		}
	}
	return parquet.WriteFile(path, records)
}

// barPath keys a cache file by the full query.
// Layout: <dataDir>/bars/<SYMBOL>/<tf>_<start>_<end>.parquet
func (c *CachedSource) barPath(symbol string, tf domain.Timeframe, start, end time.Time) string {
	const stamp = "20060102T150405Z"
	name := fmt.Sprintf("%s_%s_%s.parquet", tf.String(), start.UTC().Format(stamp), end.UTC().Format(stamp))
	return filepath.Join(c.dataDir, "bars", strings.ToUpper(symbol), name)
}

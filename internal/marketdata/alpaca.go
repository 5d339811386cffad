package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"tradesim/internal/domain"
	"tradesim/internal/util"
)

// Compile-time interface checks.
var _ Source = (*AlpacaSource)(nil)
var _ LiveSource = (*AlpacaStream)(nil)

// AlpacaSource fetches historical bars from the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   marketdata.Feed
	log    *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses the Alpaca default endpoint.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   marketdata.IEX,
		log:    log.With("component", "alpaca"),
	}
}

// FetchBars fetches candles for symbol in [start, end]. It retries transient
// API failures and returns ErrNoData when the range matches no bars.
func (s *AlpacaSource) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	alpacaTF, err := alpacaTimeframe(tf)
	if err != nil {
		return nil, err
	}

	var bars []marketdata.Bar
	err = util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var fetchErr error
		bars, fetchErr = s.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: alpacaTF,
			Start:     start,
			End:       end,
			Feed:      s.feed,
		})
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s [%s, %s]", ErrNoData, symbol, tf, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	candles := make([]domain.Candle, len(bars))
	for i, b := range bars {
		candles[i] = domain.Candle{
			Symbol: symbol,
			Start:  b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	s.log.Debug("fetched bars", "symbol", symbol, "timeframe", tf.String(), "count", len(candles))
	return candles, nil
}

// alpacaTimeframe maps a domain timeframe onto the Alpaca request type.
func alpacaTimeframe(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	var unit marketdata.TimeFrameUnit
	switch tf.Unit {
	case domain.UnitMinute:
		unit = marketdata.Min
	case domain.UnitHour:
		unit = marketdata.Hour
	case domain.UnitDay:
		unit = marketdata.Day
	case domain.UnitWeek:
		unit = marketdata.Week
	case domain.UnitMonth:
		unit = marketdata.Month
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("%w: unit %q", domain.ErrInvalidTimeframe, tf.Unit)
	}
	return marketdata.NewTimeFrame(tf.N, unit), nil
}

// AlpacaStream streams live minute bars and trades over the Alpaca WebSocket
// feed.
type AlpacaStream struct {
	apiKey    string
	apiSecret string
	streamURL string
	log       *slog.Logger
}

// NewAlpacaStream creates an AlpacaStream with the given credentials. An
// empty streamURL uses the Alpaca default endpoint.
func NewAlpacaStream(apiKey, apiSecret, streamURL string, log *slog.Logger) *AlpacaStream {
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaStream{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		streamURL: streamURL,
		log:       log.With("component", "alpaca-stream"),
	}
}

// Stream connects to the Alpaca feed and delivers minute bars and trades for
// symbol until ctx is cancelled or the connection terminates.
func (s *AlpacaStream) Stream(ctx context.Context, symbol string, onBar BarHandler, onTick TickHandler) error {
	opts := []stream.StockOption{
		stream.WithCredentials(s.apiKey, s.apiSecret),
	}
	if s.streamURL != "" {
		opts = append(opts, stream.WithBaseURL(s.streamURL))
	}
	client := stream.NewStocksClient(marketdata.IEX, opts...)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to stream: %w", err)
	}

	if onBar != nil {
		err := client.SubscribeToBars(func(b stream.Bar) {
			onBar(domain.Candle{
				Symbol: b.Symbol,
				Start:  b.Timestamp,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: float64(b.Volume),
			})
		}, symbol)
		if err != nil {
			return fmt.Errorf("subscribing to bars for %s: %w", symbol, err)
		}
	}
	if onTick != nil {
		err := client.SubscribeToTrades(func(t stream.Trade) {
			onTick(domain.Tick{
				Symbol:    t.Symbol,
				Price:     t.Price,
				Size:      float64(t.Size),
				Timestamp: t.Timestamp,
			})
		}, symbol)
		if err != nil {
			return fmt.Errorf("subscribing to trades for %s: %w", symbol, err)
		}
	}

	s.log.Info("streaming", "symbol", symbol)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Terminated():
		if err != nil {
			return fmt.Errorf("stream terminated: %w", err)
		}
		return nil
	}
}

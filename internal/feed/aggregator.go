// Package feed converts raw market events — 1-minute bars or individual
// trade prints — into fixed-duration candles aligned to a trading session.
package feed

import (
	"log/slog"
	"time"

	"tradesim/internal/domain"
)

// DefaultMaxBars bounds the per-symbol candle series kept in memory.
const DefaultMaxBars = 500

// DefaultSessionStart is 9:30 AM, the US equity session open, expressed as an
// offset from midnight.
const DefaultSessionStart = 9*time.Hour + 30*time.Minute

// Aggregator builds custom candles from 1-minute bars or trade prints. Both
// modes align buckets to the same session anchor, so the two event sources
// produce consistent bucket boundaries.
//
// An Aggregator is owned by a single simulation run and is not safe for
// concurrent use.
type Aggregator struct {
	timeframe    domain.Timeframe
	sessionStart time.Duration // offset from midnight
	maxBars      int

	current map[string]*domain.Candle // in-progress candle per symbol
	buffers map[string][]domain.Candle
	series  map[string][]domain.Candle // committed candles, oldest first
	last    map[string]float64         // last observed price per symbol
	log     *slog.Logger
}

// NewAggregator creates an Aggregator for the given timeframe. sessionStart
// is the session anchor as an offset from midnight (e.g. 9h30m); maxBars
// bounds the retained candle series per symbol (<=0 uses DefaultMaxBars).
func NewAggregator(tf domain.Timeframe, sessionStart time.Duration, maxBars int, log *slog.Logger) *Aggregator {
	if maxBars <= 0 {
		maxBars = DefaultMaxBars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		timeframe:    tf,
		sessionStart: sessionStart,
		maxBars:      maxBars,
		current:      make(map[string]*domain.Candle),
		buffers:      make(map[string][]domain.Candle),
		series:       make(map[string][]domain.Candle),
		last:         make(map[string]float64),
		log:          log.With("component", "aggregator"),
	}
}

// BucketStart returns the session-anchored bucket start for ts:
// sessionOpen + floor((ts-sessionOpen)/d)*d, where sessionOpen is midnight of
// ts's calendar day plus the session start offset. Timezone-naive and
// deterministic for any arrival order within the same day.
func (a *Aggregator) BucketStart(ts time.Time) time.Time {
	d := a.timeframe.Duration()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	sessionOpen := day.Add(a.sessionStart)

	diff := ts.Sub(sessionOpen)
	offset := diff / d
	// Go truncates toward zero; pre-session timestamps need a true floor.
	if diff < 0 && offset*d != diff {
		offset--
	}
	return sessionOpen.Add(offset * d)
}

// AddBar consumes one 1-minute bar. Bars are buffered per symbol; once enough
// have accumulated to fill the configured timeframe they are merged into a
// single finalized candle (first open, last close, extrema of highs/lows,
// summed volume) and the buffer advances past the consumed bars. The second
// return value is false while the buffer is below threshold or the merged
// candle is out of order.
func (a *Aggregator) AddBar(bar domain.Candle) (domain.Candle, bool) {
	a.last[bar.Symbol] = bar.Close

	buf := append(a.buffers[bar.Symbol], bar)
	n := int(a.timeframe.Duration() / time.Minute)
	if n < 1 {
		n = 1
	}
	if len(buf) < n {
		a.buffers[bar.Symbol] = buf
		return domain.Candle{}, false
	}

	merged := domain.Candle{
		Symbol: bar.Symbol,
		Start:  a.BucketStart(buf[0].Start),
		Open:   buf[0].Open,
		High:   buf[0].High,
		Low:    buf[0].Low,
		Close:  buf[n-1].Close,
	}
	for _, b := range buf[:n] {
		if b.High > merged.High {
			merged.High = b.High
		}
		if b.Low < merged.Low {
			merged.Low = b.Low
		}
		merged.Volume += b.Volume
	}
	a.buffers[bar.Symbol] = buf[n:]

	if !a.commit(merged) {
		return domain.Candle{}, false
	}
	c := merged
	a.current[bar.Symbol] = &c
	return merged, true
}

// AddTick consumes one trade print, creating or updating the in-progress
// candle for its bucket. The latest candle state is continuously visible in
// the series; nothing is ever finalized explicitly. Ticks belonging to a
// bucket older than the currently open one are ignored.
func (a *Aggregator) AddTick(t domain.Tick) (domain.Candle, bool) {
	a.last[t.Symbol] = t.Price
	bucket := a.BucketStart(t.Timestamp)

	cur := a.current[t.Symbol]
	if cur != nil && bucket.Before(cur.Start) {
		a.log.Debug("ignoring out-of-order trade",
			"symbol", t.Symbol, "bucket", bucket, "open", cur.Start)
		return domain.Candle{}, false
	}

	if cur == nil || !cur.Start.Equal(bucket) {
		c := domain.Candle{
			Symbol: t.Symbol,
			Start:  bucket,
			Open:   t.Price,
			High:   t.Price,
			Low:    t.Price,
			Close:  t.Price,
			Volume: t.Size,
		}
		a.current[t.Symbol] = &c
		a.replace(c)
		return c, true
	}

	if t.Price > cur.High {
		cur.High = t.Price
	}
	if t.Price < cur.Low {
		cur.Low = t.Price
	}
	cur.Close = t.Price
	cur.Volume += t.Size
	a.replace(*cur)
	return *cur, true
}

// commit appends a finalized candle to the symbol's series. A candle for the
// currently open bucket is merged into it; older buckets are dropped so a
// closed bucket is never mutated retroactively.
func (a *Aggregator) commit(c domain.Candle) bool {
	s := a.series[c.Symbol]
	if len(s) > 0 {
		open := &s[len(s)-1]
		if c.Start.Before(open.Start) {
			a.log.Debug("dropping out-of-order candle", "symbol", c.Symbol, "bucket", c.Start)
			return false
		}
		if c.Start.Equal(open.Start) {
			if c.High > open.High {
				open.High = c.High
			}
			if c.Low < open.Low {
				open.Low = c.Low
			}
			open.Close = c.Close
			open.Volume += c.Volume
			return true
		}
	}
	a.series[c.Symbol] = a.trim(append(s, c))
	return true
}

// replace upserts the in-progress candle's latest state into the series.
func (a *Aggregator) replace(c domain.Candle) {
	s := a.series[c.Symbol]
	if len(s) > 0 && s[len(s)-1].Start.Equal(c.Start) {
		s[len(s)-1] = c
		return
	}
	a.series[c.Symbol] = a.trim(append(s, c))
}

func (a *Aggregator) trim(s []domain.Candle) []domain.Candle {
	if len(s) > a.maxBars {
		s = s[len(s)-a.maxBars:]
	}
	return s
}

// Window returns a copy of the most recent n candles for symbol, oldest
// first. Fewer than n are returned while the series is still filling.
func (a *Aggregator) Window(symbol string, n int) []domain.Candle {
	s := a.series[symbol]
	if n > 0 && len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]domain.Candle, len(s))
	copy(out, s)
	return out
}

// Series returns a copy of all retained candles for symbol, oldest first.
func (a *Aggregator) Series(symbol string) []domain.Candle {
	return a.Window(symbol, 0)
}

// LastPrice returns the most recent price observed for symbol from any event.
func (a *Aggregator) LastPrice(symbol string) (float64, bool) {
	p, ok := a.last[symbol]
	return p, ok
}

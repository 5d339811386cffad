package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeframe reports a timeframe string that cannot be parsed.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// TimeframeUnit is the unit component of a Timeframe.
type TimeframeUnit string

const (
	UnitMinute TimeframeUnit = "Min"
	UnitHour   TimeframeUnit = "Hour"
	UnitDay    TimeframeUnit = "Day"
	UnitWeek   TimeframeUnit = "Week"
	UnitMonth  TimeframeUnit = "Month"
)

// Timeframe is a bar duration such as 4Min, 1Hour, or 1Day.
type Timeframe struct {
	N    int
	Unit TimeframeUnit
}

var timeframeRe = regexp.MustCompile(`^(\d+)([A-Za-z]+)$`)

// ParseTimeframe parses strings like "4Min", "1H", "1Hour", "1D", "1Day".
// Week and Month are accepted for historical fetches.
func ParseTimeframe(s string) (Timeframe, error) {
	m := timeframeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}

	var unit TimeframeUnit
	switch strings.ToLower(m[2]) {
	case "min", "minute", "minutes":
		unit = UnitMinute
	case "h", "hour", "hours":
		unit = UnitHour
	case "d", "day", "days":
		unit = UnitDay
	case "w", "week", "weeks":
		unit = UnitWeek
	case "month", "months":
		unit = UnitMonth
	default:
		return Timeframe{}, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidTimeframe, s)
	}
	return Timeframe{N: n, Unit: unit}, nil
}

// Duration returns the bucket length the timeframe represents. Weeks are 7
// days and months 30 days; both are only meaningful for historical fetches.
func (tf Timeframe) Duration() time.Duration {
	switch tf.Unit {
	case UnitMinute:
		return time.Duration(tf.N) * time.Minute
	case UnitHour:
		return time.Duration(tf.N) * time.Hour
	case UnitDay:
		return time.Duration(tf.N) * 24 * time.Hour
	case UnitWeek:
		return time.Duration(tf.N) * 7 * 24 * time.Hour
	case UnitMonth:
		return time.Duration(tf.N) * 30 * 24 * time.Hour
	}
	return 0
}

// PeriodsPerYear converts the timeframe into periods per year for
// annualization, using the 252-trading-day, 6.5-hour-day convention.
func (tf Timeframe) PeriodsPerYear() float64 {
	switch tf.Unit {
	case UnitMinute:
		return 252 * 6.5 * 60 / float64(tf.N)
	case UnitHour:
		return 252 * 6.5 / float64(tf.N)
	case UnitDay:
		return 252 / float64(tf.N)
	}
	return 252
}

func (tf Timeframe) String() string {
	return fmt.Sprintf("%d%s", tf.N, tf.Unit)
}

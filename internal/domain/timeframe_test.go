package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want Timeframe
	}{
		{"1Min", Timeframe{1, UnitMinute}},
		{"4Min", Timeframe{4, UnitMinute}},
		{"15min", Timeframe{15, UnitMinute}},
		{"1H", Timeframe{1, UnitHour}},
		{"2Hour", Timeframe{2, UnitHour}},
		{"1D", Timeframe{1, UnitDay}},
		{"1Day", Timeframe{1, UnitDay}},
		{"1Week", Timeframe{1, UnitWeek}},
		{"1Month", Timeframe{1, UnitMonth}},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in)
		if err != nil {
			t.Errorf("ParseTimeframe(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeframe(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeframe_Invalid(t *testing.T) {
	for _, in := range []string{"", "Min", "0Min", "-5Min", "4Lightyears", "4", "Min4"} {
		if _, err := ParseTimeframe(in); !errors.Is(err, ErrInvalidTimeframe) {
			t.Errorf("ParseTimeframe(%q) error = %v, want ErrInvalidTimeframe", in, err)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	if d := (Timeframe{5, UnitMinute}).Duration(); d != 5*time.Minute {
		t.Errorf("5Min Duration = %v, want 5m", d)
	}
	if d := (Timeframe{2, UnitHour}).Duration(); d != 2*time.Hour {
		t.Errorf("2Hour Duration = %v, want 2h", d)
	}
	if d := (Timeframe{1, UnitDay}).Duration(); d != 24*time.Hour {
		t.Errorf("1Day Duration = %v, want 24h", d)
	}
}

func TestPeriodsPerYear(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want float64
	}{
		{Timeframe{1, UnitMinute}, 252 * 6.5 * 60},
		{Timeframe{5, UnitMinute}, 252 * 6.5 * 12},
		{Timeframe{1, UnitHour}, 252 * 6.5},
		{Timeframe{1, UnitDay}, 252},
		{Timeframe{2, UnitDay}, 126},
		{Timeframe{1, UnitWeek}, 252},
	}
	for _, tt := range tests {
		if got := tt.tf.PeriodsPerYear(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%v PeriodsPerYear = %v, want %v", tt.tf, got, tt.want)
		}
	}
}

package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptySeries is returned when a simulation is requested over zero bars.
	ErrEmptySeries = errors.New("empty price series")

	// ErrNoCloseData means the close price column is missing or unusable.
	ErrNoCloseData = errors.New("missing required price column (close)")
)

// Bar is one OHLCV candle. Bars are immutable once loaded.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64 // optional, 0 when the source has no volume column
}

// Validate checks the OHLC relationships of a single bar.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite OHLC value at %s", b.Time.Format(time.RFC3339))
		}
	}
	if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
		return fmt.Errorf("%w: non-finite close at %s", ErrNoCloseData, b.Time.Format(time.RFC3339))
	}
	if b.High < b.Low {
		return fmt.Errorf("invalid OHLC at %s: high < low", b.Time.Format(time.RFC3339))
	}
	if b.Open < b.Low || b.Open > b.High {
		return fmt.Errorf("invalid OHLC at %s: open outside high/low range", b.Time.Format(time.RFC3339))
	}
	if b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("invalid OHLC at %s: close outside high/low range", b.Time.Format(time.RFC3339))
	}
	return nil
}

// Series is a time-ordered, duplicate-free sequence of bars.
type Series []Bar

// Validate checks ordering, uniqueness and the OHLC relationships of every bar.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Time.After(s[i-1].Time) {
			return fmt.Errorf("bar %d: timestamps not strictly ascending (%s after %s)",
				i, b.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes returns the close prices in bar order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Opens returns the open prices in bar order.
func (s Series) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

// AverageClose returns the mean close price, or 0 for an empty series.
func (s Series) AverageClose() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range s {
		sum += b.Close
	}
	return sum / float64(len(s))
}

// Start returns the timestamp of the first bar.
func (s Series) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Time
}

// End returns the timestamp of the last bar.
func (s Series) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Time
}

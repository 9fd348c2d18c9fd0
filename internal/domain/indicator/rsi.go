// Package indicator contains the technical indicators the strategy consumes.
package indicator

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPeriod is returned for an RSI period below 1.
var ErrInvalidPeriod = errors.New("rsi period must be >= 1")

// RSI computes the Relative Strength Index of values over period.
//
// Average gain and average loss are simple means of the trailing period
// bar-to-bar changes. The first period outputs are NaN. A window without
// losses yields 100, including a completely flat window.
func RSI(values []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("indicator.RSI: %w (got %d)", ErrInvalidPeriod, period)
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period+1 {
		return out, nil
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < len(values); i++ {
		var sumGain, sumLoss float64
		for j := i - period + 1; j <= i; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		out[i] = fromAverages(sumGain/float64(period), sumLoss/float64(period))
	}
	return out, nil
}

func fromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

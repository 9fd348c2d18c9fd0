package indicator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_WarmupIsNaN(t *testing.T) {
	out, err := RSI([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	require.Len(t, out, 6)
	for i := 0; i < 3; i++ {
		assert.True(t, math.IsNaN(out[i]), "index %d should be NaN", i)
	}
	for i := 3; i < 6; i++ {
		assert.False(t, math.IsNaN(out[i]), "index %d should be defined", i)
	}
}

func TestRSI_KnownValues(t *testing.T) {
	closes := []float64{100, 99, 98, 98.5, 96.5, 98.5}
	out, err := RSI(closes, 2)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, out[2], 1e-9)
	assert.InDelta(t, 100.0/3, out[3], 1e-9)
	assert.InDelta(t, 20.0, out[4], 1e-9)
	assert.InDelta(t, 50.0, out[5], 1e-9)
}

func TestRSI_OnlyGainsIs100(t *testing.T) {
	out, err := RSI([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	for i := 2; i < len(out); i++ {
		assert.Equal(t, 100.0, out[i])
	}
}

func TestRSI_OnlyLossesIs0(t *testing.T) {
	out, err := RSI([]float64{5, 4, 3, 2, 1}, 2)
	require.NoError(t, err)
	for i := 2; i < len(out); i++ {
		assert.Equal(t, 0.0, out[i])
	}
}

func TestRSI_FlatWindowIs100(t *testing.T) {
	out, err := RSI([]float64{2000, 2000, 2000, 2000}, 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, out[2])
	assert.Equal(t, 100.0, out[3])
}

func TestRSI_ShortInputAllNaN(t *testing.T) {
	out, err := RSI([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSI_InvalidPeriod(t *testing.T) {
	_, err := RSI([]float64{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRSI_BoundedOnRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, period := range []int{1, 2, 5, 14, 30} {
		prices := make([]float64, 500)
		prices[0] = 2000
		for i := 1; i < len(prices); i++ {
			prices[i] = prices[i-1] + rng.NormFloat64()*3
		}
		out, err := RSI(prices, period)
		require.NoError(t, err)
		for i := period; i < len(out); i++ {
			assert.False(t, math.IsNaN(out[i]))
			assert.GreaterOrEqual(t, out[i], 0.0)
			assert.LessOrEqual(t, out[i], 100.0)
		}
	}
}

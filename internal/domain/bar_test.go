package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(i int, o, h, l, c float64) Bar {
	return Bar{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: o, High: h, Low: l, Close: c}
}

func TestBar_Validate(t *testing.T) {
	assert.NoError(t, bar(0, 10, 12, 9, 11).Validate())
	assert.NoError(t, bar(0, 10, 10, 10, 10).Validate(), "flat bar")

	assert.Error(t, bar(0, 10, 9, 12, 10).Validate(), "high < low")
	assert.Error(t, bar(0, 13, 12, 9, 11).Validate(), "open above high")
	assert.Error(t, bar(0, 10, 12, 9, 8).Validate(), "close below low")
	assert.Error(t, bar(0, math.Inf(1), 12, 9, 11).Validate())

	err := bar(0, 10, 12, 9, math.NaN()).Validate()
	assert.True(t, errors.Is(err, ErrNoCloseData))
}

func TestSeries_Validate(t *testing.T) {
	assert.ErrorIs(t, Series{}.Validate(), ErrEmptySeries)

	ok := Series{bar(0, 1, 2, 0, 1), bar(1, 1, 2, 0, 2)}
	require.NoError(t, ok.Validate())

	dup := Series{bar(0, 1, 2, 0, 1), bar(0, 1, 2, 0, 1)}
	assert.Error(t, dup.Validate())

	unordered := Series{bar(1, 1, 2, 0, 1), bar(0, 1, 2, 0, 1)}
	assert.Error(t, unordered.Validate())
}

func TestSeries_Projections(t *testing.T) {
	s := Series{bar(0, 1, 3, 0.5, 2), bar(1, 2, 5, 1, 4)}

	assert.Equal(t, []float64{2, 4}, s.Closes())
	assert.Equal(t, []float64{1, 2}, s.Opens())
	assert.InDelta(t, 3, s.AverageClose(), 1e-12)
	assert.Equal(t, t0, s.Start())
	assert.Equal(t, t0.Add(15*time.Minute), s.End())

	var empty Series
	assert.Zero(t, empty.AverageClose())
	assert.True(t, empty.Start().IsZero())
	assert.True(t, empty.End().IsZero())
}

func TestDirectionMode(t *testing.T) {
	for in, want := range map[string]DirectionMode{"": ModeAuto, "auto": ModeAuto, " buy ": ModeBuy, "SELL": ModeSell} {
		got, err := ParseDirectionMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDirectionMode("both")
	assert.Error(t, err)

	assert.True(t, ModeAuto.Allows(DirectionBuy))
	assert.True(t, ModeAuto.Allows(DirectionSell))
	assert.False(t, ModeAuto.Allows(DirectionNone))
	assert.False(t, ModeBuy.Allows(DirectionSell))
	assert.False(t, ModeSell.Allows(DirectionBuy))
	assert.Equal(t, "NONE", DirectionNone.String())
}

func TestRange(t *testing.T) {
	r := Range{Min: 10, Max: 40}
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(40))
	assert.False(t, r.Contains(41))
	assert.Equal(t, "[10, 40]", r.String())

	open := Range{Min: 41, Max: Unbounded}
	assert.True(t, open.Contains(1_000_000))
	assert.Equal(t, "[41, ∞)", open.String())
}

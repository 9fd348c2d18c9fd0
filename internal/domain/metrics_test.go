package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func curve(values ...float64) []EquityPoint {
	out := make([]EquityPoint, len(values))
	for i, v := range values {
		out[i] = EquityPoint{Equity: v}
	}
	return out
}

func TestWinRate(t *testing.T) {
	closed := []Position{{PnL: 10}, {PnL: -5}, {PnL: 0}, {PnL: 3}}
	assert.InDelta(t, 50, WinRate(closed), 1e-9, "zero P&L is not a win")
	assert.Zero(t, WinRate(nil))
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []EquityPoint
		want  float64
	}{
		{"empty", nil, 0},
		{"rising", curve(100, 110, 120), 0},
		{"single dip", curve(100, 90, 120), 10},
		{"deeper after new peak", curve(100, 90, 200, 150, 210), 25},
		{"non-positive peak skipped", curve(0, -10, -5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.curve), 1e-9)
		})
	}
}

func TestTotalReturn(t *testing.T) {
	assert.InDelta(t, 5, TotalReturn(10000, 10500), 1e-9)
	assert.InDelta(t, -2, TotalReturn(10000, 9800), 1e-9)
	assert.Zero(t, TotalReturn(0, 100))
}

func TestSummarize(t *testing.T) {
	p := NewPortfolio(10000)
	_, _ = p.OpenPosition(2, DirectionBuy, 2000, 0.1, t0)
	p.CloseAll(2010, t0)
	_, _ = p.OpenPosition(2, DirectionSell, 2010, 0.1, t0)
	p.CloseAll(2015, t0)

	events := []Event{
		{Type: EventEntry, Direction: DirectionBuy, EntryNumber: 1},
		{Type: EventEntry, Direction: DirectionBuy, EntryNumber: 2, ShouldTrade: true},
		{Type: EventExit, Direction: DirectionBuy},
		{Type: EventEntry, Direction: DirectionSell, EntryNumber: 1},
		{Type: EventEntry, Direction: DirectionSell, EntryNumber: 2, ShouldTrade: true},
		{Type: EventBreak, Direction: DirectionSell},
		{Type: EventExit, Direction: DirectionSell},
	}
	s := Summarize(p, events, curve(10000, 10100, 10050))

	assert.Equal(t, 4, s.TotalEntries)
	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 2, s.BuyEntries)
	assert.Equal(t, 2, s.SellEntries)
	assert.Equal(t, 1, s.BuyTrades)
	assert.Equal(t, 1, s.SellTrades)
	assert.Equal(t, 2, s.TotalCycles)
	assert.Equal(t, 2, s.ClosedPositions)
	assert.Equal(t, 1, s.WinningPositions)
	assert.InDelta(t, 50, s.TotalPnL, 1e-9)
	assert.InDelta(t, 50, s.WinRate, 1e-9)
	assert.InDelta(t, s.InitialCapital+s.TotalPnL, s.FinalEquity, 1e-9)
	assert.InDelta(t, 0.5, s.TotalReturn, 1e-9)
	assert.InDelta(t, 50.0/10100*100, s.MaxDrawdown, 1e-9)

	c := s.CompactCopy()
	assert.Nil(t, c.Events)
	assert.Nil(t, c.Equity)
	assert.Len(t, s.Events, 7, "compact copy leaves the original intact")
	assert.Equal(t, s.TotalPnL, c.TotalPnL)
}

func TestCalculateLots(t *testing.T) {
	trade := Range{Min: 2, Max: 3}
	lots := CalculateLots([]float64{500, 1000, 333, 400}, 2500, trade)

	assert.Equal(t, []LotEntry{
		{EntryNumber: 1, Money: 500, LotSize: 0},
		{EntryNumber: 2, Money: 1000, LotSize: 0.004},
		{EntryNumber: 3, Money: 333, LotSize: 0.00133},
		{EntryNumber: 4, Money: 400, LotSize: 0},
	}, lots)
}

func TestCalculateLots_DefaultPrice(t *testing.T) {
	all := Range{Min: 1, Max: Unbounded}
	for _, ref := range []float64{0, -5} {
		lots := CalculateLots([]float64{2000}, ref, all)
		assert.InDelta(t, 0.01, lots[0].LotSize, 1e-12)
	}
	assert.Empty(t, CalculateLots(nil, 2000, all))
}

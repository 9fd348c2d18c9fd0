package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

func newDCA(t *testing.T, mutate func(*Config)) *DCA {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewDCA(cfg)
	require.NoError(t, err)
	return s
}

func TestNewDCA_RejectsInvalidThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"buy above 100", func(c *Config) { c.EntryBuy = 120 }},
		{"negative sell", func(c *Config) { c.EntrySell = -1 }},
		{"NaN break", func(c *Config) { c.BreakBuy = math.NaN() }},
		{"buy not below sell", func(c *Config) { c.EntryBuy = 70; c.EntrySell = 30 }},
		{"negative tolerance", func(c *Config) { c.ExitTolerance = -0.5 }},
		{"inverted trade range", func(c *Config) { c.Trade = domain.Range{Min: 10, Max: 5} }},
		{"zero based range", func(c *Config) { c.CountOnly = domain.Range{Min: 0, Max: 9} }},
		{"bad mode", func(c *Config) { c.Mode = "LONG" }},
		{"negative lot", func(c *Config) { c.Lots = map[int]float64{10: -1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewDCA(cfg)
			assert.Error(t, err)
		})
	}
}

func TestShouldEnter_FirstEntryPicksDirectionAndNeverTrades(t *testing.T) {
	s := newDCA(t, func(c *Config) { c.Trade = domain.Range{Min: 1, Max: 40} })

	d := s.ShouldEnter(30)
	assert.True(t, d.Enter)
	assert.False(t, d.Trade, "first entry is count-only even inside the trade range")
	assert.Equal(t, domain.DirectionBuy, d.Direction)

	st := s.State()
	assert.Equal(t, PhaseAccumulating, st.Phase)
	assert.Equal(t, 1, st.CurrentEntry)
	assert.True(t, st.WaitingForRhythm)
	assert.False(t, st.HasRhythm)
	assert.Equal(t, 30.0, st.LastRSIEntry)
}

func TestShouldEnter_SellOnHighRSI(t *testing.T) {
	s := newDCA(t, nil)
	d := s.ShouldEnter(70)
	assert.True(t, d.Enter)
	assert.Equal(t, domain.DirectionSell, d.Direction)
}

func TestShouldEnter_NoEntryBetweenThresholds(t *testing.T) {
	s := newDCA(t, nil)
	assert.Equal(t, Decision{}, s.ShouldEnter(50))
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestShouldEnter_DirectionMode(t *testing.T) {
	buyOnly := newDCA(t, func(c *Config) { c.Mode = domain.ModeBuy })
	assert.False(t, buyOnly.ShouldEnter(80).Enter)
	assert.True(t, buyOnly.ShouldEnter(20).Enter)

	sellOnly := newDCA(t, func(c *Config) { c.Mode = domain.ModeSell })
	assert.False(t, sellOnly.ShouldEnter(20).Enter)
	d := sellOnly.ShouldEnter(80)
	assert.True(t, d.Enter)
	assert.Equal(t, domain.DirectionSell, d.Direction)
}

func TestShouldEnter_RhythmRequired(t *testing.T) {
	s := newDCA(t, func(c *Config) { c.Trade = domain.Range{Min: 2, Max: 40} })

	require.True(t, s.ShouldEnter(30).Enter)

	// Still in the zone without leaving it: no second entry.
	assert.False(t, s.ShouldEnter(28).Enter)
	assert.False(t, s.ShouldEnter(30).Enter)
	assert.Equal(t, 1, s.CurrentEntry())

	// Leaving the zone records rhythm silently.
	assert.False(t, s.ShouldEnter(31).Enter)
	assert.True(t, s.State().HasRhythm)
	assert.Equal(t, 1, s.CurrentEntry())

	d := s.ShouldEnter(30)
	assert.True(t, d.Enter)
	assert.True(t, d.Trade, "entry 2 lies in the trade range")
	assert.Equal(t, 2, s.CurrentEntry())
	assert.False(t, s.State().HasRhythm)
}

func TestShouldEnter_SellRhythm(t *testing.T) {
	s := newDCA(t, nil)
	require.True(t, s.ShouldEnter(75).Enter)
	assert.False(t, s.ShouldEnter(72).Enter)
	assert.False(t, s.ShouldEnter(69).Enter)
	assert.True(t, s.ShouldEnter(71).Enter)
	assert.Equal(t, 2, s.CurrentEntry())
}

func TestShouldEnter_TradeOnlyInsideRange(t *testing.T) {
	s := newDCA(t, func(c *Config) {
		c.Trade = domain.Range{Min: 3, Max: 4}
		c.WaitExit = domain.Range{Min: 10, Max: domain.Unbounded}
	})
	var trades []bool
	for i := 0; i < 6; i++ {
		d := s.ShouldEnter(20)
		require.True(t, d.Enter)
		trades = append(trades, d.Trade)
		s.ShouldEnter(35)
	}
	assert.Equal(t, []bool{false, false, true, true, false, false}, trades)
}

func TestShouldEnter_MaxEntryGuard(t *testing.T) {
	s := newDCA(t, func(c *Config) {
		c.CountOnly = domain.Range{Min: 1, Max: 1}
		c.Trade = domain.Range{Min: 2, Max: 2}
		c.WaitExit = domain.Range{Min: 3, Max: domain.Unbounded}
	})
	require.True(t, s.ShouldEnter(20).Enter)
	s.ShouldEnter(35)
	require.True(t, s.ShouldEnter(20).Enter)
	require.Equal(t, 2, s.CurrentEntry())

	s.ShouldEnter(35)
	d := s.ShouldEnter(20)
	assert.False(t, d.Enter)
	assert.False(t, d.Trade)
	assert.Equal(t, domain.DirectionBuy, d.Direction)
	assert.Equal(t, 2, s.CurrentEntry())
}

func TestShouldEnter_RhythmSkipBelow(t *testing.T) {
	s := newDCA(t, func(c *Config) { c.RhythmSkipBelow = 4 })

	for want := 1; want <= 3; want++ {
		require.True(t, s.ShouldEnter(25).Enter, "entry %d", want)
		assert.Equal(t, want, s.CurrentEntry())
	}
	// Entry 4 needs rhythm again.
	assert.False(t, s.ShouldEnter(25).Enter)
	s.ShouldEnter(35)
	assert.True(t, s.ShouldEnter(25).Enter)
	assert.Equal(t, 4, s.CurrentEntry())
}

func TestShouldExit(t *testing.T) {
	s := newDCA(t, nil)
	assert.False(t, s.ShouldExit(50), "no cycle running")

	require.True(t, s.ShouldEnter(25).Enter)
	assert.True(t, s.ShouldExit(50))
	assert.True(t, s.ShouldExit(49))
	assert.True(t, s.ShouldExit(51))
	assert.False(t, s.ShouldExit(51.5))
	assert.False(t, s.ShouldExit(45))
}

func TestCheckBreak_BlocksEntriesUntilReset(t *testing.T) {
	s := newDCA(t, nil)
	assert.False(t, s.CheckBreak(90), "no direction yet")

	require.True(t, s.ShouldEnter(25).Enter)
	assert.False(t, s.CheckBreak(40), "break needs rsi strictly above 40")
	assert.True(t, s.CheckBreak(41))
	assert.Equal(t, PhaseBroken, s.State().Phase)
	assert.True(t, s.CheckBreak(45), "break is reported while the condition holds")
	assert.False(t, s.CheckBreak(35), "condition no longer holds")
	assert.Equal(t, PhaseBroken, s.State().Phase, "broken is sticky")

	for _, rsi := range []float64{10, 25, 30, 35, 20, 80} {
		assert.Equal(t, Decision{}, s.ShouldEnter(rsi))
	}
	assert.Equal(t, 1, s.CurrentEntry(), "break keeps the entry count")
	assert.True(t, s.ShouldExit(50), "exit still leaves the broken phase")

	s.Reset()
	assert.Equal(t, PhaseIdle, s.State().Phase)
	assert.True(t, s.ShouldEnter(25).Enter)
}

func TestCheckBreak_SellDirection(t *testing.T) {
	s := newDCA(t, nil)
	require.True(t, s.ShouldEnter(75).Enter)
	assert.False(t, s.CheckBreak(60))
	assert.True(t, s.CheckBreak(59.9))
}

func TestCheckBreak_MinEntriesGuard(t *testing.T) {
	s := newDCA(t, func(c *Config) { c.MinEntriesBeforeBreak = 2 })
	require.True(t, s.ShouldEnter(25).Enter)
	assert.False(t, s.CheckBreak(45))

	s.ShouldEnter(35)
	require.True(t, s.ShouldEnter(25).Enter)
	assert.True(t, s.CheckBreak(45))
}

func TestReset_ClearsState(t *testing.T) {
	s := newDCA(t, nil)
	s.ShouldEnter(20)
	s.ShouldEnter(35)
	s.CheckBreak(45)
	s.Reset()

	st := s.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, domain.DirectionNone, st.Direction)
	assert.Zero(t, st.CurrentEntry)
	assert.False(t, st.HasRhythm)
	assert.False(t, st.WaitingForRhythm)
	assert.True(t, math.IsNaN(st.LastRSIEntry))
}

func TestLotSize(t *testing.T) {
	s := newDCA(t, func(c *Config) {
		c.Lots = map[int]float64{5: 0.5, 10: 0.01, 11: 0.02}
	})
	assert.Equal(t, 0.0, s.LotSize(5), "outside trade range")
	assert.Equal(t, 0.01, s.LotSize(10))
	assert.Equal(t, 0.02, s.LotSize(11))
	assert.Equal(t, 0.0, s.LotSize(12), "missing from the table")
	assert.Equal(t, 0.0, s.LotSize(41))
}

func TestThreshold(t *testing.T) {
	s := newDCA(t, nil)
	assert.Equal(t, 30.0, s.Threshold(domain.DirectionBuy))
	assert.Equal(t, 70.0, s.Threshold(domain.DirectionSell))
	assert.True(t, math.IsNaN(s.Threshold(domain.DirectionNone)))
}

func TestNewDCA_CopiesLotTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lots[10] = 0.1
	s, err := NewDCA(cfg)
	require.NoError(t, err)

	cfg.Lots[10] = 9
	assert.Equal(t, 0.1, s.LotSize(10))
}

// Random RSI walks must keep entry numbers consecutive within a cycle and
// never trade outside the trade range or on a first entry.
func TestShouldEnter_InvariantsOnRandomRSI(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newDCA(t, func(c *Config) {
		c.Trade = domain.Range{Min: 3, Max: 6}
		c.WaitExit = domain.Range{Min: 9, Max: domain.Unbounded}
	})

	last := 0
	for i := 0; i < 20000; i++ {
		rsi := rng.Float64() * 100
		if s.ShouldExit(rsi) {
			s.Reset()
			last = 0
		}
		s.CheckBreak(rsi)
		d := s.ShouldEnter(rsi)
		if !d.Enter {
			continue
		}
		n := s.CurrentEntry()
		require.Equal(t, last+1, n)
		if n == 1 {
			assert.False(t, d.Trade)
		}
		assert.Equal(t, n >= 3 && n <= 6, d.Trade)
		assert.Less(t, n, 9)
		last = n
	}
}

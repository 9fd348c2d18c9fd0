package strategy

// dca.go: RSI averaging state machine.
//
// Idle opens a cycle on the first threshold hit. Accumulating numbers each
// rhythmic hit. Broken blocks entries until the exit resets the cycle.

import (
	"fmt"
	"math"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

// Phase is the cycle phase of the DCA state machine.
type Phase int

const (
	// PhaseIdle has no direction; the next threshold hit opens a cycle.
	PhaseIdle Phase = iota
	// PhaseAccumulating has a direction and accepts further entries.
	PhaseAccumulating
	// PhaseBroken has a direction but blocks entries until the next reset.
	PhaseBroken
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAccumulating:
		return "ACCUMULATING"
	case PhaseBroken:
		return "BROKEN"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is a read-only snapshot of the DCA cycle.
type State struct {
	Phase            Phase
	Direction        domain.Direction
	CurrentEntry     int
	HasRhythm        bool
	WaitingForRhythm bool
	LastRSIEntry     float64 // NaN before the first entry of a cycle
}

// DCA counts RSI threshold hits into numbered entries, trades the entries
// inside the trade range and closes the cycle when RSI returns to the exit
// level.
type DCA struct {
	cfg   Config
	state State
}

var _ Strategy = (*DCA)(nil)

// NewDCA validates cfg and returns an idle strategy.
func NewDCA(cfg Config) (*DCA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.NewDCA: %w", err)
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeAuto
	}
	s := &DCA{cfg: cfg.Clone()}
	s.Reset()
	return s, nil
}

func (s *DCA) Name() string { return "dca_rsi" }

// Reset clears direction, entry counter, break and rhythm flags.
func (s *DCA) Reset() {
	s.state = State{Phase: PhaseIdle, LastRSIEntry: math.NaN()}
}

// State returns a copy of the current cycle state.
func (s *DCA) State() State { return s.state }

func (s *DCA) CurrentEntry() int { return s.state.CurrentEntry }

func (s *DCA) Direction() domain.Direction { return s.state.Direction }

// Threshold returns the entry threshold of d.
func (s *DCA) Threshold(d domain.Direction) float64 {
	switch d {
	case domain.DirectionBuy:
		return s.cfg.EntryBuy
	case domain.DirectionSell:
		return s.cfg.EntrySell
	}
	return math.NaN()
}

// ShouldEnter decides whether rsi produces a new entry.
//
// The first entry of a cycle picks the direction and is never traded.
// Later entries need rhythm: RSI must have left the entry zone since the
// previous entry. Once the next entry would reach the wait-exit range no
// entry is accepted.
func (s *DCA) ShouldEnter(rsi float64) Decision {
	switch s.state.Phase {
	case PhaseBroken:
		return Decision{}
	case PhaseIdle:
		return s.open(rsi)
	}

	dir := s.state.Direction
	next := s.state.CurrentEntry + 1
	if next >= s.cfg.WaitExit.Min {
		return Decision{Direction: dir}
	}

	if !s.inEntryZone(dir, rsi) {
		if s.state.WaitingForRhythm {
			s.state.HasRhythm = true
		}
		return Decision{}
	}

	if s.state.WaitingForRhythm && !s.state.HasRhythm && !s.skipsRhythm(next) {
		return Decision{}
	}

	s.state.CurrentEntry = next
	s.state.LastRSIEntry = rsi
	s.state.HasRhythm = false
	s.state.WaitingForRhythm = true
	return Decision{
		Enter:     true,
		Trade:     s.cfg.Trade.Contains(next),
		Direction: dir,
	}
}

func (s *DCA) open(rsi float64) Decision {
	var dir domain.Direction
	switch {
	case s.cfg.Mode.Allows(domain.DirectionBuy) && rsi <= s.cfg.EntryBuy:
		dir = domain.DirectionBuy
	case s.cfg.Mode.Allows(domain.DirectionSell) && rsi >= s.cfg.EntrySell:
		dir = domain.DirectionSell
	default:
		return Decision{}
	}

	s.state = State{
		Phase:            PhaseAccumulating,
		Direction:        dir,
		CurrentEntry:     1,
		WaitingForRhythm: true,
		LastRSIEntry:     rsi,
	}
	return Decision{Enter: true, Direction: dir}
}

func (s *DCA) inEntryZone(dir domain.Direction, rsi float64) bool {
	if dir == domain.DirectionBuy {
		return rsi <= s.cfg.EntryBuy
	}
	return rsi >= s.cfg.EntrySell
}

func (s *DCA) skipsRhythm(next int) bool {
	return s.cfg.RhythmSkipBelow > 0 && next < s.cfg.RhythmSkipBelow
}

// ShouldExit reports whether rsi is within tolerance of the exit level
// while a cycle with at least one entry is running.
func (s *DCA) ShouldExit(rsi float64) bool {
	if s.state.Phase == PhaseIdle || s.state.CurrentEntry < 1 {
		return false
	}
	return math.Abs(rsi-s.cfg.ExitThreshold) <= s.cfg.ExitTolerance
}

// CheckBreak reports whether RSI is past the directional break level of
// the open cycle. The first hit moves an accumulating cycle to the broken
// phase, which stays until Reset; later hits keep reporting true.
func (s *DCA) CheckBreak(rsi float64) bool {
	if s.state.Phase == PhaseIdle || s.state.Direction == domain.DirectionNone {
		return false
	}
	if s.state.CurrentEntry < s.cfg.MinEntriesBeforeBreak {
		return false
	}

	hit := false
	switch s.state.Direction {
	case domain.DirectionBuy:
		hit = rsi > s.cfg.BreakBuy
	case domain.DirectionSell:
		hit = rsi < s.cfg.BreakSell
	}
	if hit {
		s.state.Phase = PhaseBroken
	}
	return hit
}

// LotSize returns the configured lot of an entry inside the trade range.
func (s *DCA) LotSize(entryNumber int) float64 {
	if !s.cfg.Trade.Contains(entryNumber) {
		return 0
	}
	return s.cfg.Lots[entryNumber]
}

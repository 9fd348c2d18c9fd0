package strategy

import "github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"

// Strategy is the contract the backtest engine drives once per bar.
// Implementations own their cycle state; the engine owns positions.
//
// Calls within a bar must happen in the order ShouldExit, CheckBreak,
// ShouldEnter.
type Strategy interface {
	Name() string

	// Reset returns the strategy to an idle cycle.
	Reset()

	// ShouldEnter evaluates an entry on the close RSI and advances the
	// entry counter when an entry is accepted.
	ShouldEnter(rsi float64) Decision

	// ShouldExit reports whether the running cycle must be closed.
	ShouldExit(rsi float64) bool

	// CheckBreak reports a break the first time it happens in a cycle.
	CheckBreak(rsi float64) bool

	// LotSize returns the lot to open for an entry number, 0 for none.
	LotSize(entryNumber int) float64

	// Threshold returns the entry threshold of a direction.
	Threshold(d domain.Direction) float64

	CurrentEntry() int
	Direction() domain.Direction
}

// Decision is the outcome of ShouldEnter.
type Decision struct {
	Enter     bool
	Trade     bool
	Direction domain.Direction
}

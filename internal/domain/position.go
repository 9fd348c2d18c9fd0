package domain

import (
	"errors"
	"fmt"
	"time"
)

// ContractSize is the number of units in one lot (1 lot XAUUSD = 100 oz).
const ContractSize = 100.0

// Position is one traded entry of a DCA cycle.
type Position struct {
	EntryNumber int
	Direction   Direction
	EntryPrice  float64
	LotSize     float64
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    *time.Time // nil while the position is open
	PnL         float64    // realized, set on close
}

// IsClosed reports whether the position has an exit.
func (p Position) IsClosed() bool {
	return p.ExitTime != nil
}

// PnLAt returns the directional P&L of the position if it were closed at price.
func (p Position) PnLAt(price float64) float64 {
	switch p.Direction {
	case DirectionBuy:
		return (price - p.EntryPrice) * p.LotSize * ContractSize
	case DirectionSell:
		return (p.EntryPrice - price) * p.LotSize * ContractSize
	}
	return 0
}

func (p *Position) close(price float64, at time.Time) {
	p.ExitPrice = price
	p.ExitTime = &at
	p.PnL = p.PnLAt(price)
}

// Portfolio tracks every position of one backtest run. It is never shared
// across runs.
type Portfolio struct {
	initialCapital float64
	positions      []*Position
	open           []*Position
}

// NewPortfolio creates an empty portfolio.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{initialCapital: initialCapital}
}

// InitialCapital returns the starting capital.
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital
}

// OpenPosition records a new open position.
func (p *Portfolio) OpenPosition(entryNumber int, dir Direction, price, lotSize float64, at time.Time) (Position, error) {
	if dir != DirectionBuy && dir != DirectionSell {
		return Position{}, fmt.Errorf("portfolio.OpenPosition: invalid direction %q", dir)
	}
	if lotSize <= 0 {
		return Position{}, errors.New("portfolio.OpenPosition: lot size must be > 0")
	}
	pos := &Position{
		EntryNumber: entryNumber,
		Direction:   dir,
		EntryPrice:  price,
		LotSize:     lotSize,
		EntryTime:   at,
	}
	p.positions = append(p.positions, pos)
	p.open = append(p.open, pos)
	return *pos, nil
}

// CloseAll closes every open position at price and returns them.
func (p *Portfolio) CloseAll(price float64, at time.Time) []Position {
	closed := make([]Position, 0, len(p.open))
	for _, pos := range p.open {
		pos.close(price, at)
		closed = append(closed, *pos)
	}
	p.open = nil
	return closed
}

// TotalPnL sums the realized P&L of closed positions.
func (p *Portfolio) TotalPnL() float64 {
	total := 0.0
	for _, pos := range p.positions {
		if pos.IsClosed() {
			total += pos.PnL
		}
	}
	return total
}

// Equity returns initial capital plus realized P&L.
func (p *Portfolio) Equity() float64 {
	return p.initialCapital + p.TotalPnL()
}

// EquityAt returns Equity plus the unrealized P&L of open positions at price.
func (p *Portfolio) EquityAt(price float64) float64 {
	equity := p.Equity()
	for _, pos := range p.open {
		equity += pos.PnLAt(price)
	}
	return equity
}

// OpenCount returns the number of open positions.
func (p *Portfolio) OpenCount() int {
	return len(p.open)
}

// OpenPositions returns copies of the open positions.
func (p *Portfolio) OpenPositions() []Position {
	return copyPositions(p.open)
}

// Positions returns copies of all positions in opening order.
func (p *Portfolio) Positions() []Position {
	return copyPositions(p.positions)
}

// ClosedPositions returns copies of the closed positions in opening order.
func (p *Portfolio) ClosedPositions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.IsClosed() {
			out = append(out, *pos)
		}
	}
	return out
}

func copyPositions(src []*Position) []Position {
	out := make([]Position, len(src))
	for i, pos := range src {
		out[i] = *pos
	}
	return out
}

// AverageEntryPrice returns the lot-weighted average entry price.
func AverageEntryPrice(positions []Position) float64 {
	var value, lots float64
	for _, p := range positions {
		value += p.EntryPrice * p.LotSize
		lots += p.LotSize
	}
	if lots == 0 {
		return 0
	}
	return value / lots
}

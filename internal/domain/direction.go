package domain

import (
	"fmt"
	"strings"
)

// Direction is the side of a DCA cycle.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// String returns "NONE" for the empty direction.
func (d Direction) String() string {
	if d == DirectionNone {
		return "NONE"
	}
	return string(d)
}

// DirectionMode restricts which directions a cycle may open in.
type DirectionMode string

const (
	ModeAuto DirectionMode = "AUTO" // first threshold hit picks the side
	ModeBuy  DirectionMode = "BUY"
	ModeSell DirectionMode = "SELL"
)

// ParseDirectionMode accepts AUTO, BUY or SELL in any case. Empty means AUTO.
func ParseDirectionMode(s string) (DirectionMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AUTO":
		return ModeAuto, nil
	case "BUY":
		return ModeBuy, nil
	case "SELL":
		return ModeSell, nil
	default:
		return "", fmt.Errorf("invalid direction mode %q (want AUTO, BUY or SELL)", s)
	}
}

// Allows reports whether a cycle may open in direction d.
func (m DirectionMode) Allows(d Direction) bool {
	switch m {
	case ModeAuto:
		return d == DirectionBuy || d == DirectionSell
	case ModeBuy:
		return d == DirectionBuy
	case ModeSell:
		return d == DirectionSell
	}
	return false
}

// Unbounded is the upper bound of an open-ended Range.
const Unbounded = int(^uint(0) >> 1)

// Range is an inclusive range of entry numbers.
type Range struct {
	Min int
	Max int
}

// Contains reports whether n lies inside the inclusive range.
func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// String renders the range as "[min, max]" with "∞" for an open upper bound.
func (r Range) String() string {
	if r.Max == Unbounded {
		return fmt.Sprintf("[%d, ∞)", r.Min)
	}
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

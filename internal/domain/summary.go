package domain

import "time"

// Summary is the result of one backtest run.
type Summary struct {
	Start time.Time
	End   time.Time
	Bars  int

	TotalEntries int
	TotalTrades  int
	BuyEntries   int
	SellEntries  int
	BuyTrades    int
	SellTrades   int
	TotalCycles  int // number of exit events

	ClosedPositions  int
	WinningPositions int

	TotalPnL       float64
	WinRate        float64 // %
	MaxDrawdown    float64 // %
	TotalReturn    float64 // %
	InitialCapital float64
	FinalEquity    float64

	Events []Event
	Equity []EquityPoint
}

// Summarize derives the aggregate counts and percentages of a finished run.
// The portfolio must have no open positions left.
func Summarize(p *Portfolio, events []Event, curve []EquityPoint) Summary {
	s := Summary{
		TotalPnL:       p.TotalPnL(),
		InitialCapital: p.InitialCapital(),
		FinalEquity:    p.Equity(),
		Events:         events,
		Equity:         curve,
	}

	for _, e := range events {
		switch e.Type {
		case EventEntry:
			s.TotalEntries++
			if e.Direction == DirectionBuy {
				s.BuyEntries++
			} else if e.Direction == DirectionSell {
				s.SellEntries++
			}
			if !e.ShouldTrade {
				continue
			}
			s.TotalTrades++
			if e.Direction == DirectionBuy {
				s.BuyTrades++
			} else if e.Direction == DirectionSell {
				s.SellTrades++
			}
		case EventExit:
			s.TotalCycles++
		}
	}

	closed := p.ClosedPositions()
	s.ClosedPositions = len(closed)
	s.WinningPositions = countWinning(closed)
	s.WinRate = WinRate(closed)
	s.MaxDrawdown = MaxDrawdown(curve)
	s.TotalReturn = TotalReturn(s.InitialCapital, s.FinalEquity)
	return s
}

// CompactCopy returns the summary without its event log and equity curve.
func (s Summary) CompactCopy() Summary {
	s.Events = nil
	s.Equity = nil
	return s
}

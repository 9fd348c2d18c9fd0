package domain

import "time"

// EventType tags an Event.
type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
	EventBreak EventType = "break"
)

// Exit reasons.
const (
	ExitReasonRSI       = "rsi_exit"
	ExitReasonEndOfData = "end_of_data"
)

// Event is one record of the append-only backtest log.
type Event struct {
	Type  EventType
	Time  time.Time
	Price float64
	RSI   float64

	// Entry fields.
	EntryNumber int
	Direction   Direction
	ShouldTrade bool
	Threshold   float64 // directional entry threshold that triggered the entry
	FirstEntry  bool
	LotSize     float64 // lot actually opened, 0 for count-only entries

	// Exit and break fields.
	EntryCount    int
	Reason        string
	Closed        int     // positions closed by this exit
	RealizedPnL   float64 // P&L realized by this exit
	AvgEntryPrice float64
}

// EquityPoint is the account value after one processed bar.
type EquityPoint struct {
	Time          time.Time
	Equity        float64
	OpenPositions int
}

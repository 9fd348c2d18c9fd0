package domain

import "time"

// RunRecord is an archived backtest run.
type RunRecord struct {
	ID            string
	CreatedAt     time.Time
	DataFile      string
	DirectionMode DirectionMode
	BuyThreshold  float64
	SellThreshold float64
	Summary       Summary
}

// GridCell is one evaluated point of the threshold grid.
type GridCell struct {
	Index         int
	BuyThreshold  float64
	SellThreshold float64
	Summary       Summary // compact: no events, no equity curve
	Err           error
}

// OK reports whether the cell ran successfully.
func (c GridCell) OK() bool {
	return c.Err == nil
}

// Optimization is the outcome of a threshold grid search.
type Optimization struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	BuyValues  []float64
	SellValues []float64
	Step       float64
	Cells      []GridCell // iteration order: buy ascending, then sell ascending
	Best       GridCell
	Failed     int
}

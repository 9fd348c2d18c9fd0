// Package optimizer searches the RSI entry threshold grid for the pair with
// the highest total P&L.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/application/backtest"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

var (
	// ErrInvalidGrid is returned before any cell runs.
	ErrInvalidGrid = errors.New("invalid threshold grid")

	// ErrNoResults means every grid cell failed.
	ErrNoResults = errors.New("no grid cell produced a result")
)

// Grid is the inclusive BUY × SELL entry threshold search space.
type Grid struct {
	BuyMin  float64
	BuyMax  float64
	SellMin float64
	SellMax float64
	Step    float64
}

// DefaultGrid searches BUY 30..35 and SELL 65..70 in steps of 1.
func DefaultGrid() Grid {
	return Grid{BuyMin: 30, BuyMax: 35, SellMin: 65, SellMax: 70, Step: 1}
}

// GridFromConfig reads the grid from the optimizer section.
func GridFromConfig(c config.OptimizerConfig) Grid {
	return Grid{BuyMin: c.BuyMin, BuyMax: c.BuyMax, SellMin: c.SellMin, SellMax: c.SellMax, Step: c.Step}
}

// Validate rejects empty or non-finite grids.
func (g Grid) Validate() error {
	for _, v := range []float64{g.BuyMin, g.BuyMax, g.SellMin, g.SellMax, g.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound", ErrInvalidGrid)
		}
	}
	if g.Step <= 0 {
		return fmt.Errorf("%w: step must be > 0, got %v", ErrInvalidGrid, g.Step)
	}
	if g.BuyMin > g.BuyMax {
		return fmt.Errorf("%w: buy range %v > %v", ErrInvalidGrid, g.BuyMin, g.BuyMax)
	}
	if g.SellMin > g.SellMax {
		return fmt.Errorf("%w: sell range %v > %v", ErrInvalidGrid, g.SellMin, g.SellMax)
	}
	return nil
}

// BuyValues returns the BUY candidates in ascending order.
func (g Grid) BuyValues() []float64 { return steps(g.BuyMin, g.BuyMax, g.Step) }

// SellValues returns the SELL candidates in ascending order.
func (g Grid) SellValues() []float64 { return steps(g.SellMin, g.SellMax, g.Step) }

// Size returns the number of cells.
func (g Grid) Size() int { return len(g.BuyValues()) * len(g.SellValues()) }

// steps enumerates lo, lo+step, ... up to hi inclusive, rounded to one
// decimal.
func steps(lo, hi, step float64) []float64 {
	n := int((hi-lo)/step+1e-9) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((lo+float64(i)*step)*10) / 10
	}
	return out
}

// Options tune the search.
type Options struct {
	Workers int // 0 = runtime.NumCPU()
}

// Optimizer runs one independent backtest per grid cell.
type Optimizer struct {
	base   config.Config
	series domain.Series
	opts   Options
}

// New creates an optimizer over a loaded series. base is copied per cell.
func New(base config.Config, series domain.Series, opts Options) *Optimizer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Optimizer{base: base.Clone(), series: series, opts: opts}
}

// Run evaluates every cell and picks the strictly greatest total P&L. Ties
// go to the first cell in BUY-then-SELL ascending order. Failed cells are
// logged and skipped.
func (o *Optimizer) Run(ctx context.Context, grid Grid) (domain.Optimization, error) {
	if err := grid.Validate(); err != nil {
		return domain.Optimization{}, fmt.Errorf("optimizer.Run: %w", err)
	}

	res := domain.Optimization{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		BuyValues:  grid.BuyValues(),
		SellValues: grid.SellValues(),
		Step:       grid.Step,
	}

	cells := make([]domain.GridCell, 0, len(res.BuyValues)*len(res.SellValues))
	for _, b := range res.BuyValues {
		for _, s := range res.SellValues {
			cells = append(cells, domain.GridCell{Index: len(cells), BuyThreshold: b, SellThreshold: s})
		}
	}

	slog.Info("optimizer starting",
		"id", res.ID,
		"cells", len(cells),
		"buy", fmt.Sprintf("%v..%v", grid.BuyMin, grid.BuyMax),
		"sell", fmt.Sprintf("%v..%v", grid.SellMin, grid.SellMax),
		"step", grid.Step,
		"workers", o.opts.Workers,
	)

	res.Cells = evaluateConcurrent(ctx, o.evaluate, cells, o.opts.Workers)
	res.FinishedAt = time.Now().UTC()

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("optimizer.Run: %w", err)
	}

	best := -1
	for i, c := range res.Cells {
		if !c.OK() {
			res.Failed++
			slog.Warn("grid cell failed",
				"buy", c.BuyThreshold,
				"sell", c.SellThreshold,
				"err", c.Err,
			)
			continue
		}
		if best < 0 || c.Summary.TotalPnL > res.Cells[best].Summary.TotalPnL {
			best = i
		}
	}
	if best < 0 {
		return res, fmt.Errorf("optimizer.Run: %w (%d cells failed)", ErrNoResults, res.Failed)
	}
	res.Best = res.Cells[best]

	slog.Info("optimizer finished",
		"id", res.ID,
		"best_buy", res.Best.BuyThreshold,
		"best_sell", res.Best.SellThreshold,
		"best_pnl", res.Best.Summary.TotalPnL,
		"failed", res.Failed,
		"elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
	return res, nil
}

// evaluate runs one cell on its own copy of the configuration.
func (o *Optimizer) evaluate(ctx context.Context, cell domain.GridCell) (domain.Summary, error) {
	cfg := o.base.Clone()
	cfg.Strategy.EntryThreshold.Buy = cell.BuyThreshold
	cfg.Strategy.EntryThreshold.Sell = cell.SellThreshold

	engine, err := backtest.New(cfg, o.series)
	if err != nil {
		return domain.Summary{}, err
	}
	sum, err := engine.Run(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return sum.CompactCopy(), nil
}

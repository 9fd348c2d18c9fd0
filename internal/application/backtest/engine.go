// Package backtest drives a strategy bar by bar over a price series and
// accounts the resulting positions.
package backtest

// engine.go: bar loop and position accounting.
//
// RSI is computed once per engine. Run resets the strategy first, so one
// engine can be rerun and the optimizer can build one per cell.

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain/indicator"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain/strategy"
)

// ctxCheckEvery is how many bars run between context checks.
const ctxCheckEvery = 4096

// Engine runs one strategy over one series. Every Run starts from a reset
// strategy and an empty portfolio, so reruns give identical results.
type Engine struct {
	series         domain.Series
	strategy       strategy.Strategy
	initialCapital float64
	useOpenForExit bool

	closeRSI []float64
	openRSI  []float64
}

// New validates the series and configuration, precomputes RSI and builds
// the DCA strategy.
func New(cfg config.Config, series domain.Series) (*Engine, error) {
	stratCfg, err := StrategyConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	strat, err := strategy.NewDCA(stratCfg)
	if err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	return NewWithStrategy(strat, series, Options{
		RSIPeriod:      cfg.Strategy.RSIPeriod,
		InitialCapital: cfg.Portfolio.InitialCapital,
		UseOpenForExit: cfg.Strategy.Exit.UseOpen,
	})
}

// Options are the engine settings that do not belong to the strategy.
type Options struct {
	RSIPeriod      int
	InitialCapital float64
	UseOpenForExit bool
}

// NewWithStrategy builds an engine around an existing strategy.
func NewWithStrategy(strat strategy.Strategy, series domain.Series, opts Options) (*Engine, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.NewWithStrategy: invalid series: %w", err)
	}
	if opts.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest.NewWithStrategy: initial capital must be > 0, got %v", opts.InitialCapital)
	}

	closeRSI, err := indicator.RSI(series.Closes(), opts.RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("backtest.NewWithStrategy: close RSI: %w", err)
	}

	e := &Engine{
		series:         series,
		strategy:       strat,
		initialCapital: opts.InitialCapital,
		useOpenForExit: opts.UseOpenForExit,
		closeRSI:       closeRSI,
	}
	if opts.UseOpenForExit {
		if e.openRSI, err = indicator.RSI(series.Opens(), opts.RSIPeriod); err != nil {
			return nil, fmt.Errorf("backtest.NewWithStrategy: open RSI: %w", err)
		}
	}
	return e, nil
}

// Run simulates the whole series. Within a bar the order is exit, break,
// entry, equity.
func (e *Engine) Run(ctx context.Context) (domain.Summary, error) {
	e.strategy.Reset()
	portfolio := domain.NewPortfolio(e.initialCapital)
	events := make([]domain.Event, 0, 64)
	curve := make([]domain.EquityPoint, 0, len(e.series))

	for i, bar := range e.series {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return domain.Summary{}, fmt.Errorf("backtest.Run: interrupted at bar %d: %w", i, err)
			}
		}

		rsi := e.closeRSI[i]
		if math.IsNaN(rsi) {
			continue
		}

		if exitRSI := e.exitRSI(i); e.strategy.ShouldExit(exitRSI) {
			events = append(events, e.closeCycle(portfolio, bar, exitRSI, domain.ExitReasonRSI))
		}

		if e.strategy.CheckBreak(rsi) {
			events = append(events, domain.Event{
				Type:       domain.EventBreak,
				Time:       bar.Time,
				Price:      bar.Close,
				RSI:        rsi,
				Direction:  e.strategy.Direction(),
				EntryCount: e.strategy.CurrentEntry(),
			})
			slog.Debug("cycle broken", "time", bar.Time, "rsi", rsi, "entries", e.strategy.CurrentEntry())
		}

		if d := e.strategy.ShouldEnter(rsi); d.Enter {
			ev, err := e.enter(portfolio, bar, rsi, d)
			if err != nil {
				return domain.Summary{}, fmt.Errorf("backtest.Run: bar %d: %w", i, err)
			}
			events = append(events, ev)
		}

		curve = append(curve, domain.EquityPoint{
			Time:          bar.Time,
			Equity:        portfolio.EquityAt(bar.Close),
			OpenPositions: portfolio.OpenCount(),
		})
	}

	last := e.series[len(e.series)-1]
	if portfolio.OpenCount() > 0 {
		events = append(events, e.closeCycle(portfolio, last, e.closeRSI[len(e.series)-1], domain.ExitReasonEndOfData))
	}

	summary := domain.Summarize(portfolio, events, curve)
	summary.Start = e.series.Start()
	summary.End = e.series.End()
	summary.Bars = len(e.series)

	slog.Debug("backtest finished",
		"bars", summary.Bars,
		"entries", summary.TotalEntries,
		"trades", summary.TotalTrades,
		"cycles", summary.TotalCycles,
		"pnl", summary.TotalPnL,
	)
	return summary, nil
}

func (e *Engine) exitRSI(i int) float64 {
	if e.useOpenForExit && !math.IsNaN(e.openRSI[i]) {
		return e.openRSI[i]
	}
	return e.closeRSI[i]
}

// closeCycle closes every open position at the bar close and resets the
// strategy.
func (e *Engine) closeCycle(p *domain.Portfolio, bar domain.Bar, rsi float64, reason string) domain.Event {
	ev := domain.Event{
		Type:       domain.EventExit,
		Time:       bar.Time,
		Price:      bar.Close,
		RSI:        rsi,
		Direction:  e.strategy.Direction(),
		EntryCount: e.strategy.CurrentEntry(),
		Reason:     reason,
	}

	closed := p.CloseAll(bar.Close, bar.Time)
	ev.Closed = len(closed)
	ev.AvgEntryPrice = domain.AverageEntryPrice(closed)
	for _, pos := range closed {
		ev.RealizedPnL += pos.PnL
	}
	e.strategy.Reset()

	slog.Debug("cycle closed",
		"time", bar.Time,
		"reason", reason,
		"entries", ev.EntryCount,
		"positions", ev.Closed,
		"pnl", ev.RealizedPnL,
	)
	return ev
}

func (e *Engine) enter(p *domain.Portfolio, bar domain.Bar, rsi float64, d strategy.Decision) (domain.Event, error) {
	n := e.strategy.CurrentEntry()
	ev := domain.Event{
		Type:        domain.EventEntry,
		Time:        bar.Time,
		Price:       bar.Close,
		RSI:         rsi,
		EntryNumber: n,
		Direction:   d.Direction,
		ShouldTrade: d.Trade,
		Threshold:   e.strategy.Threshold(d.Direction),
		FirstEntry:  n == 1,
	}
	if !d.Trade {
		return ev, nil
	}

	lot := e.strategy.LotSize(n)
	if lot <= 0 {
		return ev, nil
	}
	if _, err := p.OpenPosition(n, d.Direction, bar.Close, lot, bar.Time); err != nil {
		return domain.Event{}, err
	}
	ev.LotSize = lot
	return ev, nil
}

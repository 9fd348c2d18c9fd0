package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

// Config holds the validated parameters of a DCA strategy.
type Config struct {
	Mode domain.DirectionMode

	EntryBuy  float64 // BUY entry when rsi <= EntryBuy
	EntrySell float64 // SELL entry when rsi >= EntrySell
	BreakBuy  float64 // BUY break when rsi > BreakBuy
	BreakSell float64 // SELL break when rsi < BreakSell

	ExitThreshold float64
	ExitTolerance float64

	CountOnly domain.Range
	Trade     domain.Range
	WaitExit  domain.Range

	// MinEntriesBeforeBreak is the entry count a cycle needs before a break
	// can trigger.
	MinEntriesBeforeBreak int

	// RhythmSkipBelow lets entries numbered below it be taken without the
	// rhythm requirement. 0 disables the skip.
	RhythmSkipBelow int

	// Lots maps entry numbers to lot sizes.
	Lots map[int]float64
}

// DefaultConfig returns the stock 30/70 entry, 40/60 break, 50±1 exit setup.
func DefaultConfig() Config {
	return Config{
		Mode:          domain.ModeAuto,
		EntryBuy:      30,
		EntrySell:     70,
		BreakBuy:      40,
		BreakSell:     60,
		ExitThreshold: 50,
		ExitTolerance: 1,
		CountOnly:     domain.Range{Min: 1, Max: 9},
		Trade:         domain.Range{Min: 10, Max: 40},
		WaitExit:      domain.Range{Min: 41, Max: domain.Unbounded},
		Lots:          map[int]float64{},
	}
}

// Validate rejects configurations the state machine cannot run with.
func (c Config) Validate() error {
	var errs []error

	if _, err := domain.ParseDirectionMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}

	for name, v := range map[string]float64{
		"entry buy":      c.EntryBuy,
		"entry sell":     c.EntrySell,
		"break buy":      c.BreakBuy,
		"break sell":     c.BreakSell,
		"exit threshold": c.ExitThreshold,
	} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s threshold %v outside [0, 100]", name, v))
		}
	}
	if math.IsNaN(c.ExitTolerance) || c.ExitTolerance < 0 {
		errs = append(errs, fmt.Errorf("exit tolerance %v must be >= 0", c.ExitTolerance))
	}
	if c.EntryBuy >= c.EntrySell {
		errs = append(errs, fmt.Errorf("entry buy threshold %v must be below entry sell threshold %v", c.EntryBuy, c.EntrySell))
	}

	for name, r := range map[string]domain.Range{
		"count_only": c.CountOnly,
		"trade":      c.Trade,
		"wait_exit":  c.WaitExit,
	} {
		if r.Min < 1 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("entry range %s %s is invalid", name, r))
		}
	}

	if c.MinEntriesBeforeBreak < 0 {
		errs = append(errs, errors.New("min entries before break must be >= 0"))
	}
	if c.RhythmSkipBelow < 0 {
		errs = append(errs, errors.New("rhythm skip must be >= 0"))
	}
	for n, lot := range c.Lots {
		if n < 1 {
			errs = append(errs, fmt.Errorf("lot size for entry %d: entry numbers start at 1", n))
		}
		if math.IsNaN(lot) || lot < 0 {
			errs = append(errs, fmt.Errorf("lot size for entry %d must be >= 0", n))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid strategy config: %w", err)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with c.
func (c Config) Clone() Config {
	lots := make(map[int]float64, len(c.Lots))
	for k, v := range c.Lots {
		lots[k] = v
	}
	c.Lots = lots
	return c
}

package backtest

import (
	"fmt"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain/strategy"
)

// StrategyConfig maps the file configuration onto the strategy parameters.
func StrategyConfig(cfg config.Config) (strategy.Config, error) {
	mode, err := domain.ParseDirectionMode(cfg.Strategy.DirectionMode)
	if err != nil {
		return strategy.Config{}, fmt.Errorf("direction_mode: %w", err)
	}
	lots, err := cfg.Lots()
	if err != nil {
		return strategy.Config{}, err
	}

	s := cfg.Strategy
	return strategy.Config{
		Mode:                  mode,
		EntryBuy:              s.EntryThreshold.Buy,
		EntrySell:             s.EntryThreshold.Sell,
		BreakBuy:              s.BreakThreshold.Buy,
		BreakSell:             s.BreakThreshold.Sell,
		ExitThreshold:         s.Exit.Threshold,
		ExitTolerance:         s.Exit.Tolerance,
		CountOnly:             s.EntryRange.CountOnly.Domain(),
		Trade:                 s.EntryRange.Trade.Domain(),
		WaitExit:              s.EntryRange.WaitExit.Domain(),
		MinEntriesBeforeBreak: s.MinEntriesBeforeBreak,
		RhythmSkipBelow:       s.RhythmSkipBelow,
		Lots:                  lots,
	}, nil
}

package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/notify"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

func newLotsCmd(opts *globalOptions) *cobra.Command {
	var (
		price  float64
		noData bool
	)
	cmd := &cobra.Command{
		Use:   "lots MONEY...",
		Short: "Convert money per entry into XAUUSD lot sizes",
		Long: `Converts the money amount of each entry (entry 1, 2, ...) into lots at a
reference price: lot = money / (price × 100 oz). Entries outside the trade
range get 0 lots. Without --price the average close of the configured data
file is used, falling back to 2000.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			money := make([]float64, len(args))
			for i, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("invalid money amount %q", a)
				}
				money[i] = v
			}
			if err := checkMoney(money); err != nil {
				return err
			}

			var series domain.Series
			if price <= 0 && !noData && opts.cfg.Data.DataFile != "" {
				var err error
				if series, err = opts.loadSeries(cmd.Context()); err != nil {
					slog.Warn("reference price from data unavailable, using default",
						"err", err, "default", domain.DefaultReferencePrice)
				}
			}
			ref := referencePrice(price, series)

			trade := opts.cfg.Strategy.EntryRange.Trade.Domain()
			var reporter ports.Reporter = notify.NewConsole()
			reporter.PrintLots(domain.CalculateLots(money, ref, trade), ref)
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "reference XAUUSD price (0 = average close of the data file)")
	cmd.Flags().BoolVar(&noData, "no-data", false, "do not read the data file for the reference price")
	return cmd
}

func checkMoney(money []float64) error {
	for i, m := range money {
		if m < 0 {
			return fmt.Errorf("money of entry %d must be >= 0, got %v", i+1, m)
		}
	}
	return nil
}

// referencePrice is price when set, else the average close of series, else
// the default XAUUSD price.
func referencePrice(price float64, series domain.Series) float64 {
	if price > 0 {
		return price
	}
	if avg := series.AverageClose(); avg > 0 {
		return avg
	}
	return domain.DefaultReferencePrice
}

// applyMoney replaces the lot table of cfg with lots converted from money
// per entry at ref.
func applyMoney(cfg *config.Config, money []float64, ref float64) []domain.LotEntry {
	entries := domain.CalculateLots(money, ref, cfg.Strategy.EntryRange.Trade.Domain())
	cfg.LotSizes = make(map[string]float64, len(entries))
	for _, e := range entries {
		if e.LotSize > 0 {
			cfg.SetLotSize(e.EntryNumber, e.LotSize)
		}
	}
	return entries
}

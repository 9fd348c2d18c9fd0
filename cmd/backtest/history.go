package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/notify"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		limit          int
		optimizationID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs or the cells of one optimization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("storage.dsn is empty; nothing is archived")
			}
			defer store.Close()

			var reporter ports.Reporter = notify.NewConsole()
			if optimizationID == "" {
				runs, err := store.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				reporter.PrintRuns(runs)
				return nil
			}

			cells, err := store.GridCells(ctx, optimizationID)
			if err != nil {
				return err
			}
			reporter.PrintOptimization(rebuildOptimization(optimizationID, cells))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().StringVar(&optimizationID, "optimization", "", "show the grid cells of this optimization ID")
	return cmd
}

// rebuildOptimization recovers the grid axes and the best cell from stored
// cells, which are in iteration order.
func rebuildOptimization(id string, cells []domain.GridCell) domain.Optimization {
	opt := domain.Optimization{ID: id, Cells: cells}
	seenBuy := make(map[float64]bool)
	seenSell := make(map[float64]bool)
	found := false
	for _, c := range cells {
		if !seenBuy[c.BuyThreshold] {
			seenBuy[c.BuyThreshold] = true
			opt.BuyValues = append(opt.BuyValues, c.BuyThreshold)
		}
		if !seenSell[c.SellThreshold] {
			seenSell[c.SellThreshold] = true
			opt.SellValues = append(opt.SellValues, c.SellThreshold)
		}
		if !c.OK() {
			opt.Failed++
			continue
		}
		if !found || c.Summary.TotalPnL > opt.Best.Summary.TotalPnL {
			opt.Best = c
			found = true
		}
	}
	if len(opt.BuyValues) > 1 {
		opt.Step = opt.BuyValues[1] - opt.BuyValues[0]
	} else if len(opt.SellValues) > 1 {
		opt.Step = opt.SellValues[1] - opt.SellValues[0]
	}
	return opt
}

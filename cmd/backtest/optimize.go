package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/notify"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/application/optimizer"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

func newOptimizeCmd(opts *globalOptions) *cobra.Command {
	var (
		grid    optimizer.Grid
		workers int
		noSave  bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the BUY/SELL entry threshold grid for the best total P&L",
		Long: `Runs one full backtest per (BUY, SELL) entry threshold pair and reports
the pair with the highest total P&L. Unset grid flags fall back to the
optimizer section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg

			g := optimizer.GridFromConfig(cfg.Optimizer)
			flags := cmd.Flags()
			for _, f := range []struct {
				name     string
				src, dst *float64
			}{
				{"buy-min", &grid.BuyMin, &g.BuyMin},
				{"buy-max", &grid.BuyMax, &g.BuyMax},
				{"sell-min", &grid.SellMin, &g.SellMin},
				{"sell-max", &grid.SellMax, &g.SellMax},
				{"step", &grid.Step, &g.Step},
			} {
				if flags.Changed(f.name) {
					*f.dst = *f.src
				}
			}
			if !flags.Changed("workers") {
				workers = cfg.Optimizer.Workers
			}

			series, err := opts.loadSeries(ctx)
			if err != nil {
				return err
			}

			var reporter ports.Reporter = notify.NewConsole()
			opt, err := optimizer.New(*cfg, series, optimizer.Options{Workers: workers}).Run(ctx, g)
			if err != nil {
				if errors.Is(err, optimizer.ErrNoResults) {
					reporter.PrintOptimization(opt)
				}
				return err
			}
			reporter.PrintOptimization(opt)

			// Grid cells keep compact summaries; rerun the winner for the full report.
			best := cfg.Clone()
			best.Strategy.EntryThreshold.Buy = opt.Best.BuyThreshold
			best.Strategy.EntryThreshold.Sell = opt.Best.SellThreshold
			sum, err := runOnce(ctx, best, series)
			if err != nil {
				return fmt.Errorf("rerun best cell: %w", err)
			}
			reporter.PrintSummary(fmt.Sprintf("Best cell (buy %.1f / sell %.1f)",
				opt.Best.BuyThreshold, opt.Best.SellThreshold), sum)

			if noSave {
				return nil
			}
			store, err := opts.openStore()
			if err != nil || store == nil {
				return err
			}
			defer store.Close()

			if err := store.SaveOptimization(ctx, opt); err != nil {
				return err
			}
			slog.Info("optimization archived", "id", opt.ID, "cells", len(opt.Cells))
			return archiveRun(ctx, store, best, sum)
		},
	}

	def := optimizer.DefaultGrid()
	f := cmd.Flags()
	f.Float64Var(&grid.BuyMin, "buy-min", def.BuyMin, "lowest BUY entry threshold")
	f.Float64Var(&grid.BuyMax, "buy-max", def.BuyMax, "highest BUY entry threshold")
	f.Float64Var(&grid.SellMin, "sell-min", def.SellMin, "lowest SELL entry threshold")
	f.Float64Var(&grid.SellMax, "sell-max", def.SellMax, "highest SELL entry threshold")
	f.Float64Var(&grid.Step, "step", def.Step, "grid step")
	f.IntVar(&workers, "workers", 0, "parallel backtests (0 = one per CPU)")
	f.BoolVar(&noSave, "no-save", false, "do not archive the grid")
	return cmd
}

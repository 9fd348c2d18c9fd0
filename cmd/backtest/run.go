package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/notify"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/application/backtest"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		events int
		noSave bool
		money  []float64
		price  float64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest with the configured thresholds",
		Long: `Runs one backtest with the configured thresholds and lot table.

With --money the lot table is replaced by lots converted from a money amount
per entry (entry 1, 2, ...) at --price, or at the average close of the data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := checkMoney(money); err != nil {
				return err
			}

			series, err := opts.loadSeries(ctx)
			if err != nil {
				return err
			}

			var reporter ports.Reporter = notify.NewConsole()
			cfg := opts.cfg
			if len(money) > 0 {
				c := cfg.Clone()
				ref := referencePrice(price, series)
				reporter.PrintLots(applyMoney(&c, money, ref), ref)
				cfg = &c
			}

			sum, err := runOnce(ctx, *cfg, series)
			if err != nil {
				return err
			}

			reporter.PrintSummary(fmt.Sprintf("Backtest %s (%s, buy %.1f / sell %.1f)",
				cfg.Data.DataFile, cfg.Strategy.DirectionMode,
				cfg.Strategy.EntryThreshold.Buy, cfg.Strategy.EntryThreshold.Sell), sum)
			if events != 0 {
				reporter.PrintEvents(sum.Events, events)
			}

			if noSave {
				return nil
			}
			store, err := opts.openStore()
			if err != nil || store == nil {
				return err
			}
			defer store.Close()
			return archiveRun(ctx, store, *cfg, sum)
		},
	}
	cmd.Flags().IntVar(&events, "events", 20, "print the last N events (0 = none, -1 = all)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not archive the run")
	cmd.Flags().Float64SliceVar(&money, "money", nil, "money per entry, e.g. 0,100,200 (replaces lot_sizes)")
	cmd.Flags().Float64Var(&price, "price", 0, "reference price for --money (0 = average close of the data)")
	return cmd
}

// runOnce builds a fresh engine for cfg and runs it.
func runOnce(ctx context.Context, cfg config.Config, series domain.Series) (domain.Summary, error) {
	engine, err := backtest.New(cfg, series)
	if err != nil {
		return domain.Summary{}, err
	}
	return engine.Run(ctx)
}

// archiveRun stores the run summary under a fresh ID.
func archiveRun(ctx context.Context, store ports.ReportStore, cfg config.Config, sum domain.Summary) error {
	rec := domain.RunRecord{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		DataFile:      cfg.Data.DataFile,
		DirectionMode: domain.DirectionMode(cfg.Strategy.DirectionMode),
		BuyThreshold:  cfg.Strategy.EntryThreshold.Buy,
		SellThreshold: cfg.Strategy.EntryThreshold.Sell,
		Summary:       sum.CompactCopy(),
	}
	if err := store.SaveRun(ctx, rec); err != nil {
		return err
	}
	slog.Info("run archived", "id", rec.ID, "dsn", cfg.Storage.DSN)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // --tz works without a system zone database

	"github.com/spf13/cobra"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/config"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/csvdata"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/storage"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	sets       []string
	dataFile   string
	csvFormat  string
	timezone   string
	verbose    bool
	logFormat  string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "backtest",
		Short: "DCA RSI backtester for XAUUSD",
		Long: `Simulates a multi-entry RSI averaging strategy on historical XAUUSD bars.

Examples:
  backtest run --data data/XAUUSD_M15.csv
  backtest run --set strategy.direction_mode=BUY --set strategy.rsi_exit.tolerance=2
  backtest optimize --buy-min 25 --buy-max 35 --sell-min 65 --sell-max 75 --step 2.5
  backtest lots 100 200 400 --price 2350
  backtest history --limit 10`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "config/config.yaml", "path to config file")
	pf.StringArrayVar(&opts.sets, "set", nil, "override a config value, e.g. strategy.rsi_period=21 (repeatable)")
	pf.StringVar(&opts.dataFile, "data", "", "price CSV file (overrides data.data_file)")
	pf.StringVar(&opts.csvFormat, "csv-format", "auto", "CSV layout: auto|standard|tradingview|metatrader|dukascopy")
	pf.StringVar(&opts.timezone, "tz", "UTC", "zone of CSV timestamps without an offset, e.g. Europe/Athens")
	pf.BoolVar(&opts.verbose, "verbose", false, "set log level to debug")
	pf.StringVar(&opts.logFormat, "format", "", "log format: text|json (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newOptimizeCmd(opts),
		newLotsCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// load reads the config file, applies --set overrides and CLI flags,
// validates the result, then installs the logger.
func (o *globalOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if err := cfg.ApplyOverrides(o.sets); err != nil {
		return err
	}
	if o.dataFile != "" {
		cfg.Data.DataFile = o.dataFile
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogger(cfg.Log)

	o.cfg = cfg
	return nil
}

// loadSeries reads the configured price file.
func (o *globalOptions) loadSeries(ctx context.Context) (domain.Series, error) {
	if o.cfg.Data.DataFile == "" {
		return nil, fmt.Errorf("no price data: set data.data_file or pass --data")
	}
	format, err := csvdata.ParseFormat(o.csvFormat)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("--tz %q: %w", o.timezone, err)
	}
	var src ports.BarSource = csvdata.NewLoader(o.cfg.Data.DataFile,
		csvdata.WithFormat(format), csvdata.WithLocation(loc))
	return src.LoadBars(ctx)
}

// openStore opens the report archive, or returns nil when storage.dsn is empty.
func (o *globalOptions) openStore() (*storage.SQLiteStorage, error) {
	if o.cfg.Storage.DSN == "" {
		return nil, nil
	}
	store, err := storage.NewSQLiteStorage(o.cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", o.cfg.Storage.DSN, err)
	}
	return store, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Reports go to stdout; keep logs off it.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

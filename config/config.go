package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

// Config is the complete backtester configuration.
type Config struct {
	Strategy  StrategyConfig     `yaml:"strategy"`
	LotSizes  map[string]float64 `yaml:"lot_sizes"` // entry_<n> -> lots
	Portfolio PortfolioConfig    `yaml:"portfolio"`
	Data      DataConfig         `yaml:"data"`
	Optimizer OptimizerConfig    `yaml:"optimizer"`
	Storage   StorageConfig      `yaml:"storage"`
	Log       LogConfig          `yaml:"log"`
}

// StrategyConfig holds the DCA RSI parameters.
type StrategyConfig struct {
	RSIPeriod             int         `yaml:"rsi_period"`
	EntryThreshold        Thresholds  `yaml:"rsi_entry_threshold"`
	BreakThreshold        Thresholds  `yaml:"rsi_break_threshold"`
	Exit                  ExitConfig  `yaml:"rsi_exit"`
	DirectionMode         string      `yaml:"direction_mode"` // AUTO | BUY | SELL
	EntryRange            EntryRanges `yaml:"entry_range"`
	MinEntriesBeforeBreak int         `yaml:"min_entries_before_break"`
	RhythmSkipBelow       int         `yaml:"rhythm_skip_below"` // 0 disables
}

// Thresholds is a BUY/SELL pair of RSI levels.
type Thresholds struct {
	Buy  float64 `yaml:"buy"`
	Sell float64 `yaml:"sell"`
}

// ExitConfig controls the RSI exit check.
type ExitConfig struct {
	Threshold float64 `yaml:"threshold"`
	Tolerance float64 `yaml:"tolerance"`
	UseOpen   bool    `yaml:"use_open"` // exit on the RSI of opens instead of closes
}

// EntryRanges splits entry numbers into count-only, traded and wait-exit.
type EntryRanges struct {
	CountOnly Range `yaml:"count_only"`
	Trade     Range `yaml:"trade"`
	WaitExit  Range `yaml:"wait_exit"`
}

// PortfolioConfig holds the simulated account.
type PortfolioConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
}

// DataConfig points at the price history.
type DataConfig struct {
	DataFile string `yaml:"data_file"`
}

// OptimizerConfig is the default threshold grid.
type OptimizerConfig struct {
	BuyMin  float64 `yaml:"buy_min"`
	BuyMax  float64 `yaml:"buy_max"`
	SellMin float64 `yaml:"sell_min"`
	SellMax float64 `yaml:"sell_max"`
	Step    float64 `yaml:"step"`
	Workers int     `yaml:"workers"` // 0 = one per CPU
}

// StorageConfig controls where run reports are archived.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file, ":memory:", or empty to disable
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Range is an inclusive entry-number range written as [min, max] in YAML.
// A null or missing max means unbounded.
type Range struct {
	Min int
	Max int
}

// UnmarshalYAML decodes a two-element sequence such as [10, 40] or [41, null].
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	var raw []*int
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("entry range: %w", err)
	}
	if len(raw) == 0 || len(raw) > 2 || raw[0] == nil {
		return fmt.Errorf("entry range at line %d: want [min, max]", node.Line)
	}
	r.Min = *raw[0]
	r.Max = domain.Unbounded
	if len(raw) == 2 && raw[1] != nil {
		r.Max = *raw[1]
	}
	return nil
}

// MarshalYAML writes the range back as [min, max] with null for unbounded.
func (r Range) MarshalYAML() (any, error) {
	if r.Max == domain.Unbounded {
		return []any{r.Min, nil}, nil
	}
	return []int{r.Min, r.Max}, nil
}

// Domain converts the range to its domain form.
func (r Range) Domain() domain.Range {
	return domain.Range{Min: r.Min, Max: r.Max}
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Strategy: StrategyConfig{
			RSIPeriod:      14,
			EntryThreshold: Thresholds{Buy: 30, Sell: 70},
			BreakThreshold: Thresholds{Buy: 40, Sell: 60},
			Exit:           ExitConfig{Threshold: 50, Tolerance: 1, UseOpen: true},
			DirectionMode:  string(domain.ModeAuto),
			EntryRange: EntryRanges{
				CountOnly: Range{Min: 1, Max: 9},
				Trade:     Range{Min: 10, Max: 40},
				WaitExit:  Range{Min: 41, Max: domain.Unbounded},
			},
		},
		LotSizes:  map[string]float64{},
		Portfolio: PortfolioConfig{InitialCapital: 10000},
		Optimizer: OptimizerConfig{BuyMin: 30, BuyMax: 35, SellMin: 65, SellMax: 70, Step: 1},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file over the defaults, then applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overwrites values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BACKTEST_DATA_FILE"); v != "" {
		cfg.Data.DataFile = v
	}
	if v := os.Getenv("BACKTEST_DB"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults fills values the YAML zeroed out explicitly. Negative values
// are left for Validate to reject.
func setDefaults(cfg *Config) {
	if cfg.Strategy.RSIPeriod == 0 {
		cfg.Strategy.RSIPeriod = 14
	}
	cfg.Strategy.DirectionMode = strings.ToUpper(strings.TrimSpace(cfg.Strategy.DirectionMode))
	if cfg.Strategy.DirectionMode == "" {
		cfg.Strategy.DirectionMode = string(domain.ModeAuto)
	}
	if cfg.Portfolio.InitialCapital == 0 {
		cfg.Portfolio.InitialCapital = 10000
	}
	if cfg.LotSizes == nil {
		cfg.LotSizes = map[string]float64{}
	}
	if cfg.Optimizer.Step == 0 {
		cfg.Optimizer.Step = 1
	}
	if cfg.Optimizer.Workers <= 0 {
		cfg.Optimizer.Workers = runtime.NumCPU()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks the settings that do not belong to the strategy itself.
// Threshold checks happen when the strategy is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Strategy.RSIPeriod < 1 {
		errs = append(errs, fmt.Errorf("strategy.rsi_period must be >= 1, got %d", c.Strategy.RSIPeriod))
	}
	if _, err := domain.ParseDirectionMode(c.Strategy.DirectionMode); err != nil {
		errs = append(errs, fmt.Errorf("strategy.direction_mode: %w", err))
	}
	if c.Portfolio.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("portfolio.initial_capital must be > 0, got %v", c.Portfolio.InitialCapital))
	}
	if _, err := c.Lots(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// Lots returns the lot table keyed by entry number.
func (c *Config) Lots() (map[int]float64, error) {
	lots := make(map[int]float64, len(c.LotSizes))
	for key, lot := range c.LotSizes {
		n, err := parseLotKey(key)
		if err != nil {
			return nil, err
		}
		lots[n] = lot
	}
	return lots, nil
}

// LotSize returns the configured lot of entry n, 0 when absent.
func (c *Config) LotSize(n int) float64 {
	return c.LotSizes[lotKey(n)]
}

// SetLotSize sets the lot of entry n.
func (c *Config) SetLotSize(n int, lot float64) {
	if c.LotSizes == nil {
		c.LotSizes = map[string]float64{}
	}
	c.LotSizes[lotKey(n)] = lot
}

func lotKey(n int) string {
	return "entry_" + strconv.Itoa(n)
}

func parseLotKey(key string) (int, error) {
	num, ok := strings.CutPrefix(key, "entry_")
	if !ok {
		return 0, fmt.Errorf("lot_sizes: key %q must look like entry_<n>", key)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("lot_sizes: key %q must use a positive entry number", key)
	}
	return n, nil
}

// Clone returns a deep copy; the lot table is not shared.
func (c Config) Clone() Config {
	lots := make(map[string]float64, len(c.LotSizes))
	for k, v := range c.LotSizes {
		lots[k] = v
	}
	c.LotSizes = lots
	return c
}

// Override sets one value addressed by its dotted YAML path, for example
// "strategy.rsi_entry_threshold.buy". Ranges take "min,max" with an empty
// max for unbounded.
func (c *Config) Override(key, value string) error {
	value = strings.TrimSpace(value)
	s := &c.Strategy
	var err error

	switch key {
	case "strategy.rsi_period":
		s.RSIPeriod, err = strconv.Atoi(value)
	case "strategy.rsi_entry_threshold.buy":
		s.EntryThreshold.Buy, err = parseFloat(value)
	case "strategy.rsi_entry_threshold.sell":
		s.EntryThreshold.Sell, err = parseFloat(value)
	case "strategy.rsi_break_threshold.buy":
		s.BreakThreshold.Buy, err = parseFloat(value)
	case "strategy.rsi_break_threshold.sell":
		s.BreakThreshold.Sell, err = parseFloat(value)
	case "strategy.rsi_exit.threshold":
		s.Exit.Threshold, err = parseFloat(value)
	case "strategy.rsi_exit.tolerance":
		s.Exit.Tolerance, err = parseFloat(value)
	case "strategy.rsi_exit.use_open":
		s.Exit.UseOpen, err = strconv.ParseBool(value)
	case "strategy.direction_mode":
		var mode domain.DirectionMode
		if mode, err = domain.ParseDirectionMode(value); err == nil {
			s.DirectionMode = string(mode)
		}
	case "strategy.entry_range.count_only":
		s.EntryRange.CountOnly, err = parseRange(value)
	case "strategy.entry_range.trade":
		s.EntryRange.Trade, err = parseRange(value)
	case "strategy.entry_range.wait_exit":
		s.EntryRange.WaitExit, err = parseRange(value)
	case "strategy.min_entries_before_break":
		s.MinEntriesBeforeBreak, err = strconv.Atoi(value)
	case "strategy.rhythm_skip_below":
		s.RhythmSkipBelow, err = strconv.Atoi(value)
	case "portfolio.initial_capital":
		c.Portfolio.InitialCapital, err = parseFloat(value)
	case "data.data_file":
		c.Data.DataFile = value
	case "optimizer.buy_min":
		c.Optimizer.BuyMin, err = parseFloat(value)
	case "optimizer.buy_max":
		c.Optimizer.BuyMax, err = parseFloat(value)
	case "optimizer.sell_min":
		c.Optimizer.SellMin, err = parseFloat(value)
	case "optimizer.sell_max":
		c.Optimizer.SellMax, err = parseFloat(value)
	case "optimizer.step":
		c.Optimizer.Step, err = parseFloat(value)
	case "optimizer.workers":
		c.Optimizer.Workers, err = strconv.Atoi(value)
	case "storage.dsn":
		c.Storage.DSN = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		name, ok := strings.CutPrefix(key, "lot_sizes.")
		if !ok {
			return fmt.Errorf("config.Override: unknown key %q", key)
		}
		n, perr := parseLotKey(name)
		if perr != nil {
			return fmt.Errorf("config.Override: %w", perr)
		}
		var lot float64
		lot, err = parseFloat(value)
		if err == nil {
			c.SetLotSize(n, lot)
		}
	}

	if err != nil {
		return fmt.Errorf("config.Override: %s=%q: %w", key, value, err)
	}
	return nil
}

// ApplyOverrides applies "key=value" pairs in order.
func (c *Config) ApplyOverrides(pairs []string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("config.ApplyOverrides: %q is not key=value", pair)
		}
		if err := c.Override(strings.TrimSpace(key), value); err != nil {
			return err
		}
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return Range{}, errors.New("want min,max")
	}
	first, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, err
	}
	r := Range{Min: first, Max: domain.Unbounded}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.Max, err = strconv.Atoi(hi); err != nil {
			return Range{}, err
		}
	}
	return r, nil
}

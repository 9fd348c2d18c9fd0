// Package csvdata loads OHLCV price history from CSV exports of Dukascopy,
// MetaTrader, TradingView or a plain timestamp/open/high/low/close layout.
package csvdata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

// Format names a CSV column layout.
type Format string

const (
	FormatAuto        Format = "auto"
	FormatStandard    Format = "standard"    // timestamp,open,high,low,close[,volume]
	FormatTradingView Format = "tradingview" // time,open,high,low,close[,volume]
	FormatMetaTrader  Format = "metatrader"  // Date,Time,Open,High,Low,Close[,Volume]
	FormatDukascopy   Format = "dukascopy"   // Local time,Open,High,Low,Close[,Volume]
)

// ParseFormat accepts the format names above; empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatStandard, FormatTradingView, FormatMetaTrader, FormatDukascopy:
		return f, nil
	}
	return "", fmt.Errorf("unknown CSV format %q", s)
}

// ParseError reports a file that could not be turned into a price series.
// Line is 0 for file-level problems.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csvdata: %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("csvdata: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// sniffBytes is how much of the file is inspected to pick the delimiter.
const sniffBytes = 2048

// Loader implements ports.BarSource over a CSV file.
type Loader struct {
	path   string
	format Format
	loc    *time.Location
}

var _ ports.BarSource = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithFormat forces a column layout instead of detecting it.
func WithFormat(f Format) Option {
	return func(l *Loader) { l.format = f }
}

// WithLocation sets the zone of timestamps that carry no offset. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(l *Loader) { l.loc = loc }
}

// NewLoader creates a loader for path.
func NewLoader(path string, opts ...Option) *Loader {
	l := &Loader{path: path, format: FormatAuto, loc: time.UTC}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadBars reads and validates the whole file.
func (l *Loader) LoadBars(ctx context.Context) (domain.Series, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &ParseError{Path: l.path, Err: err}
	}
	defer f.Close()

	series, err := l.Parse(ctx, f)
	if err != nil {
		return nil, err
	}
	slog.Info("price data loaded",
		"file", l.path,
		"bars", len(series),
		"from", series.Start().Format(time.RFC3339),
		"to", series.End().Format(time.RFC3339),
	)
	return series, nil
}

// Parse reads CSV data from r. Rows are sorted by time, duplicate
// timestamps keep their first occurrence and every bar is validated.
func (l *Loader) Parse(ctx context.Context, r io.Reader) (domain.Series, error) {
	br := bufio.NewReaderSize(r, sniffBytes*2)
	sample, _ := br.Peek(sniffBytes)

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(sample)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, l.fail(0, domain.ErrEmptySeries)
	}
	if err != nil {
		return nil, l.fail(1, err)
	}

	format := l.format
	if format == FormatAuto {
		format = detectFormat(header)
	}
	cols, err := mapColumns(header, format)
	if err != nil {
		return nil, l.fail(1, err)
	}

	var bars domain.Series
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, l.fail(line, err)
		}
		if isBlank(rec) {
			continue
		}
		bar, err := cols.bar(rec, l.loc)
		if err != nil {
			return nil, l.fail(line, err)
		}
		bars = append(bars, bar)
	}

	bars = sortAndDedup(bars, l.path)
	if err := bars.Validate(); err != nil {
		return nil, l.fail(0, err)
	}
	return bars, nil
}

func (l *Loader) fail(line int, err error) error {
	return &ParseError{Path: l.path, Line: line, Err: err}
}

// detectDelimiter picks ';' when the sample's first line has more
// semicolons than commas.
func detectDelimiter(sample []byte) rune {
	first := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		first = sample[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.Trim(strings.TrimSpace(h), "<>")
	return strings.ToLower(h)
}

func detectFormat(header []string) Format {
	has := make(map[string]bool, len(header))
	for _, h := range header {
		has[normalizeHeader(h)] = true
	}
	switch {
	case (has["local time"] || has["gmt time"] || (has["date"] && !has["time"])) && has["open"] && has["high"]:
		return FormatDukascopy
	case has["date"] && has["time"]:
		return FormatMetaTrader
	case has["time"] && has["open"]:
		return FormatTradingView
	}
	return FormatStandard
}

// columns holds the record indexes of each field; -1 when absent.
type columns struct {
	ts, date, clock        int
	open, high, low, close int
	volume                 int
}

func mapColumns(header []string, format Format) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	c := columns{
		ts: -1, date: -1, clock: -1,
		open:   find("open"),
		high:   find("high"),
		low:    find("low"),
		close:  find("close"),
		volume: find("volume", "tickvol", "vol"),
	}

	switch format {
	case FormatMetaTrader:
		c.date, c.clock = find("date"), find("time")
		if c.date < 0 || c.clock < 0 {
			return c, errors.New("metatrader layout needs Date and Time columns")
		}
	case FormatDukascopy:
		c.ts = find("local time", "gmt time", "date", "time")
	case FormatTradingView:
		c.ts = find("time", "timestamp", "datetime")
	case FormatStandard:
		c.ts = find("timestamp", "datetime", "date", "time")
	default:
		return c, fmt.Errorf("unsupported format %q", format)
	}
	if c.date < 0 && c.ts < 0 {
		return c, errors.New("missing timestamp column")
	}

	if c.close < 0 {
		return c, domain.ErrNoCloseData
	}
	var missing []string
	for name, i := range map[string]int{"open": c.open, "high": c.high, "low": c.low} {
		if i < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return c, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func (c columns) bar(rec []string, loc *time.Location) (domain.Bar, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var raw string
	if c.date >= 0 {
		raw = field(c.date) + " " + field(c.clock)
	} else {
		raw = field(c.ts)
	}
	ts, err := parseTime(raw, loc)
	if err != nil {
		return domain.Bar{}, err
	}

	closeStr := field(c.close)
	if closeStr == "" {
		return domain.Bar{}, fmt.Errorf("%w: empty close", domain.ErrNoCloseData)
	}
	bar := domain.Bar{Time: ts}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", field(c.open), &bar.Open},
		{"high", field(c.high), &bar.High},
		{"low", field(c.low), &bar.Low},
		{"close", closeStr, &bar.Close},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			if f.name == "close" {
				return domain.Bar{}, fmt.Errorf("%w: %q", domain.ErrNoCloseData, f.raw)
			}
			return domain.Bar{}, fmt.Errorf("invalid %s %q", f.name, f.raw)
		}
		*f.dst = v
	}
	if v := field(c.volume); v != "" {
		if bar.Volume, err = strconv.ParseFloat(v, 64); err != nil {
			return domain.Bar{}, fmt.Errorf("invalid volume %q", v)
		}
	}
	return bar, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	"02.01.2006 15:04:05.000 GMT-0700",
	"02.01.2006 15:04:05.000",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"20060102 150405",
	"20060102",
}

// parseTime accepts the layouts above or unix seconds / milliseconds.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// sortAndDedup orders bars by time and keeps the first bar of each
// timestamp in file order.
func sortAndDedup(bars domain.Series, path string) domain.Series {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	out := bars[:0]
	dropped := 0
	for i, b := range bars {
		if i > 0 && b.Time.Equal(out[len(out)-1].Time) {
			dropped++
			continue
		}
		out = append(out, b)
	}
	if dropped > 0 {
		slog.Warn("duplicate timestamps dropped, keeping first occurrence", "file", path, "dropped", dropped)
	}
	return out
}

package notify

// console.go: tablewriter reports on stdout. Logs stay on stderr.

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
)

// Console prints backtest reports as tables.
type Console struct {
	out io.Writer
}

var _ ports.Reporter = (*Console)(nil)

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to w. Used by tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintSummary prints the headline numbers of one run.
func (c *Console) PrintSummary(title string, s domain.Summary) {
	fmt.Fprintf(c.out, "\n=== %s ===\n", title)
	if s.Bars > 0 {
		fmt.Fprintf(c.out, "  %d bars  %s → %s\n", s.Bars, fmtTime(s.Start), fmtTime(s.End))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	rows := [][]string{
		{"Total entries", strconv.Itoa(s.TotalEntries)},
		{"  BUY / SELL", fmt.Sprintf("%d / %d", s.BuyEntries, s.SellEntries)},
		{"Total trades", strconv.Itoa(s.TotalTrades)},
		{"  BUY / SELL", fmt.Sprintf("%d / %d", s.BuyTrades, s.SellTrades)},
		{"Cycles", strconv.Itoa(s.TotalCycles)},
		{"Closed positions", strconv.Itoa(s.ClosedPositions)},
		{"Win rate", pct(s.WinRate)},
		{"Total P&L", money(s.TotalPnL)},
		{"Max drawdown", pct(s.MaxDrawdown)},
		{"Total return", pct(s.TotalReturn)},
		{"Initial capital", money(s.InitialCapital)},
		{"Final equity", money(s.FinalEquity)},
	}
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	table.Render()
}

// PrintEvents prints the event log, the last limit events when limit > 0.
func (c *Console) PrintEvents(events []domain.Event, limit int) {
	if len(events) == 0 {
		fmt.Fprintln(c.out, "  no events")
		return
	}
	shown := events
	if limit > 0 && len(events) > limit {
		shown = events[len(events)-limit:]
		fmt.Fprintf(c.out, "\n  last %d of %d events\n", limit, len(events))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Type", "Dir", "#", "RSI", "Price", "Trade", "Lot", "P&L", "Note")
	for _, e := range shown {
		num, trade, lot, pnl, note := "", "", "", "", ""
		switch e.Type {
		case domain.EventEntry:
			num = strconv.Itoa(e.EntryNumber)
			trade = yesNo(e.ShouldTrade)
			if e.LotSize > 0 {
				lot = fmt.Sprintf("%.2f", e.LotSize)
			}
			note = fmt.Sprintf("rsi threshold %.1f", e.Threshold)
		case domain.EventExit:
			num = strconv.Itoa(e.EntryCount)
			pnl = money(e.RealizedPnL)
			note = fmt.Sprintf("%s, %d closed", e.Reason, e.Closed)
			if e.Closed > 0 {
				note += fmt.Sprintf(", avg %.2f", e.AvgEntryPrice)
			}
		case domain.EventBreak:
			num = strconv.Itoa(e.EntryCount)
			note = "entries blocked"
		}
		table.Append(
			fmtTime(e.Time),
			string(e.Type),
			e.Direction.String(),
			num,
			fmtRSI(e.RSI),
			fmt.Sprintf("%.2f", e.Price),
			trade,
			lot,
			pnl,
			note,
		)
	}
	table.Render()
}

// PrintOptimization prints every grid cell; the best one is starred.
func (c *Console) PrintOptimization(opt domain.Optimization) {
	fmt.Fprintf(c.out, "\n=== Threshold optimization %s ===\n", opt.ID)
	fmt.Fprintf(c.out, "  %d cells (%d BUY × %d SELL, step %g), %d failed, %s\n",
		len(opt.Cells), len(opt.BuyValues), len(opt.SellValues), opt.Step, opt.Failed,
		opt.FinishedAt.Sub(opt.StartedAt).Round(time.Millisecond))

	hasBest := opt.Failed < len(opt.Cells) && opt.Best.OK()

	table := tablewriter.NewWriter(c.out)
	table.Header("", "Buy", "Sell", "Entries", "Trades", "Cycles", "Win rate", "Max DD", "P&L")
	for _, cell := range opt.Cells {
		mark := ""
		if hasBest && cell.OK() && cell.Index == opt.Best.Index {
			mark = "*"
		}
		if !cell.OK() {
			table.Append(mark, fmt.Sprintf("%.1f", cell.BuyThreshold), fmt.Sprintf("%.1f", cell.SellThreshold),
				"-", "-", "-", "-", "-", "error: "+cell.Err.Error())
			continue
		}
		s := cell.Summary
		table.Append(
			mark,
			fmt.Sprintf("%.1f", cell.BuyThreshold),
			fmt.Sprintf("%.1f", cell.SellThreshold),
			strconv.Itoa(s.TotalEntries),
			strconv.Itoa(s.TotalTrades),
			strconv.Itoa(s.TotalCycles),
			pct(s.WinRate),
			pct(s.MaxDrawdown),
			money(s.TotalPnL),
		)
	}
	table.Render()

	if hasBest {
		fmt.Fprintf(c.out, "  best: buy %.1f / sell %.1f  P&L %s\n",
			opt.Best.BuyThreshold, opt.Best.SellThreshold, money(opt.Best.Summary.TotalPnL))
	} else {
		fmt.Fprintln(c.out, "  no successful cell")
	}
}

// PrintLots prints the money-to-lot conversion table.
func (c *Console) PrintLots(lots []domain.LotEntry, refPrice float64) {
	fmt.Fprintf(c.out, "\n=== Lot sizes @ %.2f (1 lot = %.0f oz) ===\n", refPrice, domain.ContractSize)
	table := tablewriter.NewWriter(c.out)
	table.Header("Entry", "Money", "Lot")
	total := 0.0
	for _, l := range lots {
		table.Append(strconv.Itoa(l.EntryNumber), money(l.Money), fmt.Sprintf("%.5f", l.LotSize))
		total += l.LotSize
	}
	table.Render()
	fmt.Fprintf(c.out, "  total lots: %.5f\n", total)
}

// PrintRuns prints archived runs, newest first.
func (c *Console) PrintRuns(runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "  no archived runs")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Created", "Data", "Mode", "Buy", "Sell", "Trades", "P&L", "Return")
	for _, r := range runs {
		table.Append(
			shortID(r.ID),
			fmtTime(r.CreatedAt),
			r.DataFile,
			string(r.DirectionMode),
			fmt.Sprintf("%.1f", r.BuyThreshold),
			fmt.Sprintf("%.1f", r.SellThreshold),
			strconv.Itoa(r.Summary.TotalTrades),
			money(r.Summary.TotalPnL),
			pct(r.Summary.TotalReturn),
		)
	}
	table.Render()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func fmtRSI(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

package storage

// sqlite.go: write-mostly archive of finished reports.
//
//   - `runs`: one row per backtest run with its summary numbers.
//   - `optimizations`: one row per grid search plus the winning cell.
//   - `grid_cells`: every evaluated cell of a grid search.
//
// The engine never reads from here; the CLI history command does.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id                TEXT PRIMARY KEY,
    created_at        TEXT    NOT NULL,
    data_file         TEXT    NOT NULL DEFAULT '',
    direction_mode    TEXT    NOT NULL,
    buy_threshold     REAL    NOT NULL,
    sell_threshold    REAL    NOT NULL,
    bars              INTEGER NOT NULL DEFAULT 0,
    start_at          TEXT,
    end_at            TEXT,
    total_entries     INTEGER NOT NULL DEFAULT 0,
    total_trades      INTEGER NOT NULL DEFAULT 0,
    buy_entries       INTEGER NOT NULL DEFAULT 0,
    sell_entries      INTEGER NOT NULL DEFAULT 0,
    buy_trades        INTEGER NOT NULL DEFAULT 0,
    sell_trades       INTEGER NOT NULL DEFAULT 0,
    total_cycles      INTEGER NOT NULL DEFAULT 0,
    closed_positions  INTEGER NOT NULL DEFAULT 0,
    winning_positions INTEGER NOT NULL DEFAULT 0,
    total_pnl         REAL    NOT NULL DEFAULT 0,
    win_rate          REAL    NOT NULL DEFAULT 0,
    max_drawdown      REAL    NOT NULL DEFAULT 0,
    total_return      REAL    NOT NULL DEFAULT 0,
    initial_capital   REAL    NOT NULL DEFAULT 0,
    final_equity      REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS optimizations (
    id          TEXT PRIMARY KEY,
    started_at  TEXT    NOT NULL,
    finished_at TEXT    NOT NULL,
    step        REAL    NOT NULL,
    buy_min     REAL    NOT NULL,
    buy_max     REAL    NOT NULL,
    sell_min    REAL    NOT NULL,
    sell_max    REAL    NOT NULL,
    cells       INTEGER NOT NULL,
    failed      INTEGER NOT NULL DEFAULT 0,
    best_buy    REAL,
    best_sell   REAL,
    best_pnl    REAL
);

CREATE TABLE IF NOT EXISTS grid_cells (
    optimization_id TEXT    NOT NULL REFERENCES optimizations(id),
    idx             INTEGER NOT NULL,
    buy_threshold   REAL    NOT NULL,
    sell_threshold  REAL    NOT NULL,
    total_entries   INTEGER NOT NULL DEFAULT 0,
    total_trades    INTEGER NOT NULL DEFAULT 0,
    total_cycles    INTEGER NOT NULL DEFAULT 0,
    win_rate        REAL    NOT NULL DEFAULT 0,
    max_drawdown    REAL    NOT NULL DEFAULT 0,
    total_pnl       REAL    NOT NULL DEFAULT 0,
    error           TEXT,
    PRIMARY KEY (optimization_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_opt_started  ON optimizations(started_at DESC);
`

// SQLiteStorage implements ports.ReportStore using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.ReportStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database at path and applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun inserts one run summary.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	sum := run.Summary
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, data_file, direction_mode, buy_threshold, sell_threshold,
			bars, start_at, end_at,
			total_entries, total_trades, buy_entries, sell_entries, buy_trades, sell_trades,
			total_cycles, closed_positions, winning_positions,
			total_pnl, win_rate, max_drawdown, total_return, initial_capital, final_equity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, fmtTime(run.CreatedAt), run.DataFile, string(run.DirectionMode), run.BuyThreshold, run.SellThreshold,
		sum.Bars, fmtTime(sum.Start), fmtTime(sum.End),
		sum.TotalEntries, sum.TotalTrades, sum.BuyEntries, sum.SellEntries, sum.BuyTrades, sum.SellTrades,
		sum.TotalCycles, sum.ClosedPositions, sum.WinningPositions,
		sum.TotalPnL, sum.WinRate, sum.MaxDrawdown, sum.TotalReturn, sum.InitialCapital, sum.FinalEquity,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert %s: %w", run.ID, err)
	}
	return nil
}

// SaveOptimization stores the search and all of its cells in one transaction.
func (s *SQLiteStorage) SaveOptimization(ctx context.Context, opt domain.Optimization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveOptimization: begin tx: %w", err)
	}
	defer tx.Rollback()

	var bestBuy, bestSell, bestPnL *float64
	if opt.Best.OK() && len(opt.Cells) > 0 && opt.Failed < len(opt.Cells) {
		bestBuy, bestSell, bestPnL = &opt.Best.BuyThreshold, &opt.Best.SellThreshold, &opt.Best.Summary.TotalPnL
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO optimizations (
			id, started_at, finished_at, step, buy_min, buy_max, sell_min, sell_max,
			cells, failed, best_buy, best_sell, best_pnl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opt.ID, fmtTime(opt.StartedAt), fmtTime(opt.FinishedAt), opt.Step,
		first(opt.BuyValues), last(opt.BuyValues), first(opt.SellValues), last(opt.SellValues),
		len(opt.Cells), opt.Failed, bestBuy, bestSell, bestPnL,
	); err != nil {
		return fmt.Errorf("storage.SaveOptimization: insert %s: %w", opt.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grid_cells (
			optimization_id, idx, buy_threshold, sell_threshold,
			total_entries, total_trades, total_cycles, win_rate, max_drawdown, total_pnl, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveOptimization: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range opt.Cells {
		var errText *string
		if c.Err != nil {
			msg := c.Err.Error()
			errText = &msg
		}
		sum := c.Summary
		if _, err := stmt.ExecContext(ctx,
			opt.ID, c.Index, c.BuyThreshold, c.SellThreshold,
			sum.TotalEntries, sum.TotalTrades, sum.TotalCycles, sum.WinRate, sum.MaxDrawdown, sum.TotalPnL, errText,
		); err != nil {
			return fmt.Errorf("storage.SaveOptimization: insert cell %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveOptimization: commit: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStorage) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, data_file, direction_mode, buy_threshold, sell_threshold,
		       bars, COALESCE(start_at, ''), COALESCE(end_at, ''),
		       total_entries, total_trades, buy_entries, sell_entries, buy_trades, sell_trades,
		       total_cycles, closed_positions, winning_positions,
		       total_pnl, win_rate, max_drawdown, total_return, initial_capital, final_equity
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var (
			r                     domain.RunRecord
			mode                  string
			createdAt, start, end string
		)
		sum := &r.Summary
		if err := rows.Scan(
			&r.ID, &createdAt, &r.DataFile, &mode, &r.BuyThreshold, &r.SellThreshold,
			&sum.Bars, &start, &end,
			&sum.TotalEntries, &sum.TotalTrades, &sum.BuyEntries, &sum.SellEntries, &sum.BuyTrades, &sum.SellTrades,
			&sum.TotalCycles, &sum.ClosedPositions, &sum.WinningPositions,
			&sum.TotalPnL, &sum.WinRate, &sum.MaxDrawdown, &sum.TotalReturn, &sum.InitialCapital, &sum.FinalEquity,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentRuns: scan: %w", err)
		}
		r.DirectionMode = domain.DirectionMode(mode)
		r.CreatedAt = parseTime(createdAt)
		sum.Start = parseTime(start)
		sum.End = parseTime(end)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GridCells returns the stored cells of one optimization in grid order.
func (s *SQLiteStorage) GridCells(ctx context.Context, optimizationID string) ([]domain.GridCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, buy_threshold, sell_threshold,
		       total_entries, total_trades, total_cycles, win_rate, max_drawdown, total_pnl,
		       COALESCE(error, '')
		FROM grid_cells
		WHERE optimization_id = ?
		ORDER BY idx`, optimizationID)
	if err != nil {
		return nil, fmt.Errorf("storage.GridCells: query: %w", err)
	}
	defer rows.Close()

	var cells []domain.GridCell
	for rows.Next() {
		var (
			c       domain.GridCell
			errText string
		)
		if err := rows.Scan(
			&c.Index, &c.BuyThreshold, &c.SellThreshold,
			&c.Summary.TotalEntries, &c.Summary.TotalTrades, &c.Summary.TotalCycles,
			&c.Summary.WinRate, &c.Summary.MaxDrawdown, &c.Summary.TotalPnL,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("storage.GridCells: scan: %w", err)
		}
		if errText != "" {
			c.Err = storedError(errText)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// storedError is a cell error read back from the archive.
type storedError string

func (e storedError) Error() string { return string(e) }

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

package ports

import (
	"context"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

// ReportStore archives finished runs and optimizations. The engine never
// reads from it.
type ReportStore interface {
	// SaveRun persists the summary of one backtest run.
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// SaveOptimization persists a grid search with all of its cells.
	SaveOptimization(ctx context.Context, opt domain.Optimization) error

	// RecentRuns returns the latest archived runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Close closes the database connection.
	Close() error
}

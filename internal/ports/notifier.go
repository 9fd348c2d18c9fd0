package ports

import "github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"

// Reporter presents backtest results to the user.
type Reporter interface {
	PrintSummary(title string, s domain.Summary)

	// PrintEvents prints up to limit events; limit <= 0 prints all.
	PrintEvents(events []domain.Event, limit int)

	PrintOptimization(opt domain.Optimization)
	PrintLots(lots []domain.LotEntry, refPrice float64)
	PrintRuns(runs []domain.RunRecord)
}

package ports

import (
	"context"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

// BarSource loads a price history.
type BarSource interface {
	// LoadBars returns a validated, time-ordered, duplicate-free series.
	LoadBars(ctx context.Context) (domain.Series, error)
}

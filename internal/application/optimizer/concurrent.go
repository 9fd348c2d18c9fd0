package optimizer

// concurrent.go: bounded worker pool for grid cells.
//
// Every cell gets its own engine over the shared read-only series. Results
// land at the cell index, so reports are identical for any worker count.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

type evalFunc func(ctx context.Context, cell domain.GridCell) (domain.Summary, error)

// evaluateConcurrent runs every cell on a bounded worker pool. Each result
// is stored at its cell index, so the output order never depends on
// scheduling. Cells not started before ctx is cancelled carry ctx.Err().
func evaluateConcurrent(ctx context.Context, eval evalFunc, cells []domain.GridCell, workers int) []domain.GridCell {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	out := make([]domain.GridCell, len(cells))
	copy(out, cells)

	var done atomic.Int64
	progress := rate.Sometimes{First: 1, Interval: 2 * time.Second}
	total := len(cells)

	workCh := make(chan int, len(cells))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if err := ctx.Err(); err != nil {
					out[idx].Err = err
					continue
				}
				out[idx].Summary, out[idx].Err = safeEval(ctx, eval, out[idx])

				n := done.Add(1)
				progress.Do(func() {
					slog.Info("optimizer progress", "done", n, "total", total)
				})
			}
		}()
	}

	for i := range out {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	slog.Debug("grid evaluation complete", "cells", total, "evaluated", done.Load(), "workers", workers)
	return out
}

// safeEval turns a panicking cell into a cell error.
func safeEval(ctx context.Context, eval evalFunc, cell domain.GridCell) (sum domain.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cell buy=%v sell=%v panicked: %v", cell.BuyThreshold, cell.SellThreshold, r)
		}
	}()
	return eval(ctx, cell)
}

package domain

// WinRate returns winning/closed × 100, or 0 without closed positions.
func WinRate(closed []Position) float64 {
	if len(closed) == 0 {
		return 0
	}
	return float64(countWinning(closed)) / float64(len(closed)) * 100
}

func countWinning(closed []Position) int {
	n := 0
	for _, p := range closed {
		if p.PnL > 0 {
			n++
		}
	}
	return n
}

// MaxDrawdown returns the largest (peak − equity)/peak × 100 over the curve,
// where peak is the running maximum. A non-positive peak contributes 0.
func MaxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - pt.Equity) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// TotalReturn returns (final − initial)/initial × 100.
func TotalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

package domain

import "math"

// DefaultReferencePrice is used when no average XAUUSD price is available.
const DefaultReferencePrice = 2000.0

// LotEntry maps an entry number to the money it should risk and the
// resulting lot size.
type LotEntry struct {
	EntryNumber int
	Money       float64
	LotSize     float64
}

// CalculateLots converts a money amount per entry into lot sizes.
// money[0] belongs to entry 1. Entries outside the trade range get lot 0;
// inside it lot = money / (refPrice × ContractSize), rounded to 5 decimals.
func CalculateLots(money []float64, refPrice float64, trade Range) []LotEntry {
	if refPrice <= 0 || math.IsNaN(refPrice) {
		refPrice = DefaultReferencePrice
	}
	out := make([]LotEntry, len(money))
	for i, m := range money {
		n := i + 1
		lot := 0.0
		if trade.Contains(n) && m > 0 {
			lot = roundTo(m/(refPrice*ContractSize), 5)
		}
		out[i] = LotEntry{EntryNumber: n, Money: m, LotSize: lot}
	}
	return out
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

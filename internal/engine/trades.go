package engine

import (
	"backtestlab/internal/domain"
)

// ExtractTrades pairs position transitions into completed trades in a
// single forward pass.
//
// A trade opens on the bar where the position leaves zero and closes on the
// bar where it returns to zero, both at that bar's close. A change of sign
// closes the open trade and opens a new one on the same bar. A trade still
// open after the last bar is not reported.
func ExtractTrades(bars []domain.Bar, positions []float64, initialCapital float64) []domain.Trade {
	var (
		trades []domain.Trade
		open   domain.Trade
		inside bool
	)

	for i, pos := range positions {
		if i >= len(bars) {
			break
		}
		bar := bars[i]

		if inside && (pos == 0 || direction(pos) != open.Direction) {
			trades = append(trades, closeTrade(open, bar, initialCapital))
			inside = false
		}
		if !inside && pos != 0 {
			open = domain.Trade{
				EntryDate:  bar.Timestamp,
				EntryPrice: bar.Close,
				Direction:  direction(pos),
				Size:       abs(pos),
			}
			inside = true
		}
	}
	return trades
}

func closeTrade(t domain.Trade, bar domain.Bar, initialCapital float64) domain.Trade {
	t.ExitDate = bar.Timestamp
	t.ExitPrice = bar.Close

	fraction := (t.ExitPrice - t.EntryPrice) / t.EntryPrice
	if t.Direction == domain.DirectionShort {
		fraction = (t.EntryPrice - t.ExitPrice) / t.EntryPrice
	}
	t.PnLPercent = fraction * 100
	t.PnLDollars = initialCapital * fraction
	return t
}

func direction(pos float64) domain.Direction {
	if pos < 0 {
		return domain.DirectionShort
	}
	return domain.DirectionLong
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

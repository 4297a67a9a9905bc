package engine

import (
	"math"
	"testing"

	"backtestlab/internal/domain"
)

func TestExtractTrades(t *testing.T) {
	closes := []float64{100, 100, 110, 120, 90, 90, 80, 100, 105, 95}

	tests := []struct {
		name      string
		positions []float64
		want      []domain.Trade
	}{
		{
			name:      "never in the market",
			positions: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:      "one long trade",
			positions: []float64{0, 1, 1, 1, 0, 0, 0, 0, 0, 0},
			want: []domain.Trade{
				{EntryPrice: 100, ExitPrice: 90, Direction: domain.DirectionLong, Size: 1, PnLPercent: -10, PnLDollars: -1000},
			},
		},
		{
			name:      "short trade profits on a drop",
			positions: []float64{0, 0, 0, -1, -1, -1, 0, 0, 0, 0},
			want: []domain.Trade{
				{EntryPrice: 120, ExitPrice: 80, Direction: domain.DirectionShort, Size: 1, PnLPercent: 100 * 40.0 / 120, PnLDollars: 10000 * 40.0 / 120},
			},
		},
		{
			name:      "open trade at end is dropped",
			positions: []float64{0, 1, 0, 0, 0, 0, 0, 1, 1, 1},
			want: []domain.Trade{
				{EntryPrice: 100, ExitPrice: 110, Direction: domain.DirectionLong, Size: 1, PnLPercent: 10, PnLDollars: 1000},
			},
		},
		{
			name:      "direction flip closes and reopens on the same bar",
			positions: []float64{0, 1, 1, -1, -1, 0, 0, 0, 0, 0},
			want: []domain.Trade{
				{EntryPrice: 100, ExitPrice: 120, Direction: domain.DirectionLong, Size: 1, PnLPercent: 20, PnLDollars: 2000},
				{EntryPrice: 120, ExitPrice: 90, Direction: domain.DirectionShort, Size: 1, PnLPercent: 25, PnLDollars: 2500},
			},
		},
		{
			name:      "size change keeps the trade open",
			positions: []float64{0, 0.5, 1, 1, 0, 0, 0, 0, 0, 0},
			want: []domain.Trade{
				{EntryPrice: 100, ExitPrice: 90, Direction: domain.DirectionLong, Size: 0.5, PnLPercent: -10, PnLDollars: -1000},
			},
		},
	}

	bars := makeBars(closes)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTrades(bars, tt.positions, 10000)
			if len(got) != len(tt.want) {
				t.Fatalf("len(trades) = %d, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				g := got[i]
				if g.EntryPrice != w.EntryPrice || g.ExitPrice != w.ExitPrice {
					t.Errorf("trade %d prices = %v -> %v, want %v -> %v", i, g.EntryPrice, g.ExitPrice, w.EntryPrice, w.ExitPrice)
				}
				if g.Direction != w.Direction {
					t.Errorf("trade %d direction = %q, want %q", i, g.Direction, w.Direction)
				}
				if g.Size != w.Size {
					t.Errorf("trade %d size = %v, want %v", i, g.Size, w.Size)
				}
				if math.Abs(g.PnLPercent-w.PnLPercent) > 1e-9 {
					t.Errorf("trade %d PnLPercent = %v, want %v", i, g.PnLPercent, w.PnLPercent)
				}
				if math.Abs(g.PnLDollars-w.PnLDollars) > 1e-6 {
					t.Errorf("trade %d PnLDollars = %v, want %v", i, g.PnLDollars, w.PnLDollars)
				}
				if !g.EntryDate.Before(g.ExitDate) {
					t.Errorf("trade %d entry %v not before exit %v", i, g.EntryDate, g.ExitDate)
				}
			}
		})
	}
}

func TestExtractTradesDates(t *testing.T) {
	bars := makeBars([]float64{10, 11, 12, 13})
	got := ExtractTrades(bars, []float64{0, 1, 1, 0}, 100)
	if len(got) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(got))
	}
	if !got[0].EntryDate.Equal(bars[1].Timestamp) {
		t.Errorf("EntryDate = %v, want %v", got[0].EntryDate, bars[1].Timestamp)
	}
	if !got[0].ExitDate.Equal(bars[3].Timestamp) {
		t.Errorf("ExitDate = %v, want %v", got[0].ExitDate, bars[3].Timestamp)
	}
}

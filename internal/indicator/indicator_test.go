package indicator

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestSMA(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	got := SMA(x, 3)
	if len(got) != len(x) {
		t.Fatalf("len(SMA) = %d, want %d", len(got), len(x))
	}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("SMA[%d] = %v, want NaN during warmup", i, got[i])
		}
	}
	want := []float64{2, 3, 4, 5}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Errorf("SMA[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestSMAShortInput(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	if len(got) != 2 {
		t.Fatalf("len(SMA) = %d, want 2", len(got))
	}
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %v, want NaN", i, v)
		}
	}
	if SMA([]float64{1}, 0) != nil {
		t.Error("SMA with non-positive period should return nil")
	}
}

func TestRollingStd(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := RollingStd(x, 8)
	for i := 0; i < 7; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("RollingStd[%d] = %v, want NaN", i, got[i])
		}
	}
	// Sample variance of the series is 32/7.
	want := math.Sqrt(32.0 / 7.0)
	if !almostEqual(got[7], want) {
		t.Errorf("RollingStd[7] = %v, want %v", got[7], want)
	}
}

func TestRollingStdConstant(t *testing.T) {
	x := make([]float64, 30)
	for i := range x {
		x[i] = 100
	}
	got := RollingStd(x, 20)
	for i := 19; i < len(x); i++ {
		if got[i] != 0 {
			t.Errorf("RollingStd[%d] = %v, want 0", i, got[i])
		}
	}
}

func TestEMA(t *testing.T) {
	// span 3 -> alpha 0.5
	got := EMA([]float64{2, 4, 8}, 3)
	want := []float64{2, 3, 5.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("EMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		check  func(t *testing.T, rsi []float64)
	}{
		{
			name:   "rising series never records a loss",
			closes: []float64{1, 2, 3, 4, 5},
			check: func(t *testing.T, rsi []float64) {
				for i, v := range rsi {
					if v != 100 {
						t.Errorf("RSI[%d] = %v, want 100", i, v)
					}
				}
			},
		},
		{
			name:   "falling series has zero RSI after the first bar",
			closes: []float64{5, 4, 3, 2, 1},
			check: func(t *testing.T, rsi []float64) {
				if rsi[0] != 100 {
					t.Errorf("RSI[0] = %v, want 100", rsi[0])
				}
				for i := 1; i < len(rsi); i++ {
					if rsi[i] != 0 {
						t.Errorf("RSI[%d] = %v, want 0", i, rsi[i])
					}
				}
			},
		},
		{
			name:   "mixed series stays within bounds",
			closes: []float64{10, 11, 10.5, 12, 11, 11.5, 13, 12},
			check: func(t *testing.T, rsi []float64) {
				for i, v := range rsi {
					if v < 0 || v > 100 {
						t.Errorf("RSI[%d] = %v, want within [0, 100]", i, v)
					}
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.closes, 3)
			if len(got) != len(tt.closes) {
				t.Fatalf("len(RSI) = %d, want %d", len(got), len(tt.closes))
			}
			tt.check(t, got)
		})
	}
}

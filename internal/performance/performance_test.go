package performance

import (
	"math"
	"testing"

	"backtestlab/internal/domain"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestTotalAndAnnualizedReturn(t *testing.T) {
	equity := []float64{100, 105, 110}
	if got := TotalReturn(equity); !approx(got, 10, 1e-9) {
		t.Errorf("TotalReturn = %v, want 10", got)
	}
	want := (math.Pow(1.1, 252.0/3) - 1) * 100
	if got := AnnualizedReturn(equity, 252); !approx(got, want, 1e-6) {
		t.Errorf("AnnualizedReturn = %v, want %v", got, want)
	}
	if got := TotalReturn([]float64{100}); got != 0 {
		t.Errorf("TotalReturn(single) = %v, want 0", got)
	}
	if got := AnnualizedReturn([]float64{100, -5}, 252); got != -100 {
		t.Errorf("AnnualizedReturn(wiped out) = %v, want -100", got)
	}
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	m := 0.0
	for _, r := range returns {
		m += r
	}
	m /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - m) * (r - m)
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	want := (m*252 - 0.02) / (sd * math.Sqrt(252))

	if got := SharpeRatio(returns, 0.02, 252); !approx(got, want, 1e-9) {
		t.Errorf("SharpeRatio = %v, want %v", got, want)
	}
}

func TestZeroVarianceRatios(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"positive mean", []float64{0.01, 0.01, 0.01, 0.01}, math.Inf(1)},
		{"zero mean", []float64{0, 0, 0, 0}, 0},
		{"negative mean", []float64{-0.01, -0.01, -0.01}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SharpeRatio(tt.returns, 0.02, 252); got != tt.want {
				t.Errorf("SharpeRatio = %v, want %v", got, tt.want)
			}
			if got := SortinoRatio(tt.returns, 0.02, 252); got != tt.want {
				t.Errorf("SortinoRatio = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortinoRatio(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.03, 0.01}
	m := (0.02 - 0.01 + 0.03 - 0.03 + 0.01) / 5
	// Downside values -0.01 and -0.03: mean -0.02, sample variance 0.0002.
	sd := math.Sqrt(0.0002)
	want := (m*252 - 0.02) / (sd * math.Sqrt(252))
	if got := SortinoRatio(returns, 0.02, 252); !approx(got, want, 1e-9) {
		t.Errorf("SortinoRatio = %v, want %v", got, want)
	}

	// A single negative return leaves the downside deviation undefined.
	if got := SortinoRatio([]float64{0.02, -0.01, 0.03}, 0.02, 252); !math.IsInf(got, 1) {
		t.Errorf("SortinoRatio(one loss) = %v, want +Inf", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	equity := []float64{100, 120, 90, 110, 130, 104}
	// Worst decline is 120 -> 90.
	if got := MaxDrawdown(equity); !approx(got, -25, 1e-9) {
		t.Errorf("MaxDrawdown = %v, want -25", got)
	}
	if got := MaxDrawdown([]float64{1, 2, 3, 4}); got != 0 {
		t.Errorf("MaxDrawdown(rising) = %v, want 0", got)
	}
	if got := MaxDrawdown([]float64{5}); got != 0 {
		t.Errorf("MaxDrawdown(single) = %v, want 0", got)
	}
}

func TestCalmarRatio(t *testing.T) {
	if got := CalmarRatio([]float64{100, 101, 102}, 252); !math.IsInf(got, 1) {
		t.Errorf("CalmarRatio(no drawdown, gain) = %v, want +Inf", got)
	}
	if got := CalmarRatio([]float64{100, 100, 100}, 252); got != 0 {
		t.Errorf("CalmarRatio(flat) = %v, want 0", got)
	}
	equity := []float64{100, 80, 120}
	want := AnnualizedReturn(equity, 252) / 20
	if got := CalmarRatio(equity, 252); !approx(got/want, 1, 1e-9) {
		t.Errorf("CalmarRatio = %v, want %v", got, want)
	}
}

func TestValueAtRisk(t *testing.T) {
	returns := make([]float64, 21)
	for i := range returns {
		returns[i] = float64(i-10) / 100 // -0.10 .. 0.10
	}
	// rank = 0.05 * 20 = 1 -> second smallest value.
	if got := ValueAtRisk(returns, 0.95); !approx(got, -9, 1e-9) {
		t.Errorf("ValueAtRisk = %v, want -9", got)
	}
	// Tail is {-0.10, -0.09}.
	if got := ConditionalVaR(returns, 0.95); !approx(got, -9.5, 1e-9) {
		t.Errorf("ConditionalVaR = %v, want -9.5", got)
	}

	// Interpolated rank: 0.05 * 3 = 0.15 between -0.04 and -0.02.
	small := []float64{0.01, -0.04, 0.03, -0.02}
	if got := ValueAtRisk(small, 0.95); !approx(got, -3.7, 1e-9) {
		t.Errorf("ValueAtRisk(small) = %v, want -3.7", got)
	}
	if got := ConditionalVaR(small, 0.95); !approx(got, -4, 1e-9) {
		t.Errorf("ConditionalVaR(small) = %v, want -4", got)
	}
}

func TestVolatility(t *testing.T) {
	returns := []float64{0.01, 0.03}
	want := math.Sqrt(0.0002) * math.Sqrt(252) * 100
	if got := Volatility(returns, 252); !approx(got, want, 1e-9) {
		t.Errorf("Volatility = %v, want %v", got, want)
	}
}

func TestFewerThanTwoPoints(t *testing.T) {
	one := []float64{0.05}
	checks := map[string]float64{
		"TotalReturn":      TotalReturn(one),
		"AnnualizedReturn": AnnualizedReturn(one, 252),
		"SharpeRatio":      SharpeRatio(one, 0.02, 252),
		"SortinoRatio":     SortinoRatio(one, 0.02, 252),
		"MaxDrawdown":      MaxDrawdown(one),
		"Volatility":       Volatility(one, 252),
		"ValueAtRisk":      ValueAtRisk(one, 0.95),
		"ConditionalVaR":   ConditionalVaR(one, 0.95),
	}
	for name, got := range checks {
		if got != 0 {
			t.Errorf("%s(single point) = %v, want 0", name, got)
		}
	}
}

func TestTradeMetrics(t *testing.T) {
	trades := []domain.Trade{
		{PnLPercent: 10, PnLDollars: 1000},
		{PnLPercent: -5, PnLDollars: -500},
		{PnLPercent: 20, PnLDollars: 2000},
		{PnLPercent: -15, PnLDollars: -1500},
	}
	if got := WinRate(trades); got != 50 {
		t.Errorf("WinRate = %v, want 50", got)
	}
	if got := ProfitFactor(trades); !approx(got, 1.5, 1e-9) {
		t.Errorf("ProfitFactor = %v, want 1.5", got)
	}
	avgWin, avgLoss, ratio := AverageWinLoss(trades)
	if avgWin != 15 || avgLoss != 10 || ratio != 1.5 {
		t.Errorf("AverageWinLoss = %v/%v/%v, want 15/10/1.5", avgWin, avgLoss, ratio)
	}
}

func TestProfitFactorEdges(t *testing.T) {
	if got := ProfitFactor(nil); got != 0 {
		t.Errorf("ProfitFactor(nil) = %v, want 0", got)
	}
	winners := []domain.Trade{{PnLPercent: 3, PnLDollars: 300}}
	if got := ProfitFactor(winners); !math.IsInf(got, 1) {
		t.Errorf("ProfitFactor(winners only) = %v, want +Inf", got)
	}
	if _, _, ratio := AverageWinLoss(winners); ratio != 0 {
		t.Errorf("win/loss ratio without losses = %v, want 0", ratio)
	}
	if got := WinRate(nil); got != 0 {
		t.Errorf("WinRate(nil) = %v, want 0", got)
	}
}

func TestGenerateReport(t *testing.T) {
	equity := []float64{1000, 1010, 1005, 1030, 1020}
	returns := make([]float64, len(equity))
	for i := 1; i < len(equity); i++ {
		returns[i] = equity[i]/equity[i-1] - 1
	}
	trades := []domain.Trade{{PnLPercent: 2.5, PnLDollars: 25}}

	r := GenerateReport(equity, returns, trades, 1000)

	if r.Performance.TotalReturn != 2 {
		t.Errorf("TotalReturn = %v, want 2", r.Performance.TotalReturn)
	}
	if r.Summary.FinalCapital != 1020 || r.Summary.TotalPnL != 20 {
		t.Errorf("Summary = %+v, want final 1020 pnl 20", r.Summary)
	}
	if r.Risk.MaxDrawdown > 0 {
		t.Errorf("MaxDrawdown = %v, want <= 0", r.Risk.MaxDrawdown)
	}
	if !math.IsInf(r.Trades.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf", r.Trades.ProfitFactor)
	}
	if r.Trades.TotalTrades != 1 || r.Trades.WinRate != 100 {
		t.Errorf("Trades = %+v, want 1 trade at 100%% win rate", r.Trades)
	}

	// Every finite metric is rounded to cents.
	for name, v := range map[string]float64{
		"annualized_return": r.Performance.AnnualizedReturn,
		"sharpe":            r.Performance.SharpeRatio,
		"volatility":        r.Risk.AnnualizedVolatility,
		"var":               r.Risk.VaR95,
	} {
		if scaled := v * 100; !approx(scaled, math.Round(scaled), 1e-6) {
			t.Errorf("%s = %v, want two decimal places", name, v)
		}
	}
}

func TestReportSignMatchesEquity(t *testing.T) {
	up := GenerateReport([]float64{100, 90, 120}, []float64{0, -0.1, 1.0 / 3}, nil, 100)
	if up.Performance.TotalReturn <= 0 {
		t.Errorf("TotalReturn = %v, want > 0 when final equity exceeds capital", up.Performance.TotalReturn)
	}
	down := GenerateReport([]float64{100, 90, 95}, []float64{0, -0.1, 0.05 / 0.9}, nil, 100)
	if down.Performance.TotalReturn >= 0 {
		t.Errorf("TotalReturn = %v, want < 0", down.Performance.TotalReturn)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.235, 1.24},
		{-2.5678, -2.57},
		{100, 100},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := round2(math.Inf(1)); !math.IsInf(got, 1) {
		t.Errorf("round2(+Inf) = %v, want +Inf", got)
	}
}

// Package performance computes return, risk, and trade statistics for a
// completed backtest. Every function is pure. Ratios that are undefined for
// the input return +Inf or 0 instead of failing.
package performance

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"backtestlab/internal/domain"
)

const (
	DefaultRiskFreeRate   = 0.02
	DefaultPeriodsPerYear = 252
)

// TotalReturn is the percentage change from the first to the last equity
// value.
func TotalReturn(equity []float64) float64 {
	if len(equity) < 2 || equity[0] == 0 {
		return 0
	}
	initial, final := equity[0], equity[len(equity)-1]
	return (final - initial) / initial * 100
}

// AnnualizedReturn compounds the total growth over len(equity) periods to a
// yearly rate, in percent. A wiped-out account reports -100.
func AnnualizedReturn(equity []float64, periodsPerYear int) float64 {
	if len(equity) < 2 || equity[0] == 0 {
		return 0
	}
	growth := equity[len(equity)-1] / equity[0]
	if growth <= 0 {
		return -100
	}
	return (math.Pow(growth, float64(periodsPerYear)/float64(len(equity))) - 1) * 100
}

// SharpeRatio is the annualized excess return over annualized volatility.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := sampleStd(returns)
	if sd == 0 {
		return infIfPositive(m)
	}
	return (m*float64(periodsPerYear) - riskFreeRate) / (sd * math.Sqrt(float64(periodsPerYear)))
}

// SortinoRatio is SharpeRatio with the denominator restricted to the
// standard deviation of the negative returns. Fewer than two negative
// returns leave that deviation undefined and are treated as zero.
func SortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	downside := lo.Filter(returns, func(r float64, _ int) bool { return r < 0 })
	if len(downside) < 2 {
		return infIfPositive(m)
	}
	sd := sampleStd(downside)
	if sd == 0 {
		return infIfPositive(m)
	}
	return (m*float64(periodsPerYear) - riskFreeRate) / (sd * math.Sqrt(float64(periodsPerYear)))
}

// MaxDrawdown is the deepest peak-to-trough decline of equity, in percent.
// It is always <= 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0]
	var worst float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// CalmarRatio is AnnualizedReturn over the magnitude of MaxDrawdown.
func CalmarRatio(equity []float64, periodsPerYear int) float64 {
	ann := AnnualizedReturn(equity, periodsPerYear)
	dd := MaxDrawdown(equity)
	if dd == 0 {
		return infIfPositive(ann)
	}
	return ann / math.Abs(dd)
}

// Volatility is the annualized sample standard deviation of returns, in
// percent.
func Volatility(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	return sampleStd(returns) * math.Sqrt(float64(periodsPerYear)) * 100
}

// ValueAtRisk is the (1-confidence) percentile of returns, linearly
// interpolated, in percent.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return percentile(returns, (1-confidence)*100) * 100
}

// ConditionalVaR is the mean of the returns at or below the ValueAtRisk
// threshold, in percent.
func ConditionalVaR(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	threshold := percentile(returns, (1-confidence)*100)
	tail := lo.Filter(returns, func(r float64, _ int) bool { return r <= threshold })
	if len(tail) == 0 {
		return 0
	}
	return mean(tail) * 100
}

// WinRate is the percentage of trades with a positive PnLPercent.
func WinRate(trades []domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := lo.CountBy(trades, func(t domain.Trade) bool { return t.PnLPercent > 0 })
	return float64(wins) / float64(len(trades)) * 100
}

// ProfitFactor is gross dollar profit over gross dollar loss.
func ProfitFactor(trades []domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var profit, loss float64
	for _, t := range trades {
		switch {
		case t.PnLDollars > 0:
			profit += t.PnLDollars
		case t.PnLDollars < 0:
			loss -= t.PnLDollars
		}
	}
	if loss == 0 {
		return infIfPositive(profit)
	}
	return profit / loss
}

// AverageWinLoss returns the mean winning PnLPercent, the mean magnitude of
// losing PnLPercent, and their ratio (0 when there are no losses).
func AverageWinLoss(trades []domain.Trade) (avgWin, avgLoss, ratio float64) {
	wins := lo.FilterMap(trades, func(t domain.Trade, _ int) (float64, bool) {
		return t.PnLPercent, t.PnLPercent > 0
	})
	losses := lo.FilterMap(trades, func(t domain.Trade, _ int) (float64, bool) {
		return -t.PnLPercent, t.PnLPercent < 0
	})
	if len(wins) > 0 {
		avgWin = mean(wins)
	}
	if len(losses) > 0 {
		avgLoss = mean(losses)
	}
	if avgLoss > 0 {
		ratio = avgWin / avgLoss
	}
	return avgWin, avgLoss, ratio
}

func infIfPositive(x float64) float64 {
	if x > 0 {
		return math.Inf(1)
	}
	return 0
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return lo.Sum(x) / float64(len(x))
}

// sampleStd is the n-1 standard deviation. Identical values give exactly 0.
func sampleStd(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	if lo.Min(x) == lo.Max(x) {
		return 0
	}
	m := mean(x)
	var ss float64
	for _, v := range x {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)-1))
}

// percentile uses linear interpolation between closest ranks.
func percentile(x []float64, q float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	rank := q / 100 * float64(len(s)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower < 0 {
		return s[0]
	}
	if upper >= len(s) {
		return s[len(s)-1]
	}
	return s[lower] + (s[upper]-s[lower])*(rank-float64(lower))
}

package performance

import (
	"math"

	"github.com/shopspring/decimal"

	"backtestlab/internal/domain"
)

// Report groups the metrics of one run. Finite values are rounded to two
// decimal places; +Inf is kept as is.
type Report struct {
	Performance PerformanceMetrics
	Risk        RiskMetrics
	Trades      TradeMetrics
	Summary     Summary
}

type PerformanceMetrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	CalmarRatio      float64
}

type RiskMetrics struct {
	MaxDrawdown          float64
	AnnualizedVolatility float64
	VaR95                float64
	CVaR95               float64
}

type TradeMetrics struct {
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64
	WinLossRatio float64
}

type Summary struct {
	InitialCapital float64
	FinalCapital   float64
	TotalPnL       float64
}

// Calculator produces reports with a fixed risk-free rate and annualization
// factor.
type Calculator struct {
	riskFreeRate   float64
	periodsPerYear int
}

// NewCalculator creates a Calculator. A non-positive periodsPerYear falls
// back to DefaultPeriodsPerYear.
func NewCalculator(riskFreeRate float64, periodsPerYear int) *Calculator {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Calculator{riskFreeRate: riskFreeRate, periodsPerYear: periodsPerYear}
}

// GenerateReport builds a Report with the default risk-free rate and 252
// periods per year.
func GenerateReport(equity, returns []float64, trades []domain.Trade, initialCapital float64) Report {
	return NewCalculator(DefaultRiskFreeRate, DefaultPeriodsPerYear).Report(equity, returns, trades, initialCapital)
}

// Report builds a Report from an equity curve, the per-bar strategy returns,
// and the completed trades.
func (c *Calculator) Report(equity, returns []float64, trades []domain.Trade, initialCapital float64) Report {
	avgWin, avgLoss, ratio := AverageWinLoss(trades)

	final := initialCapital
	if len(equity) > 0 {
		final = equity[len(equity)-1]
	}

	return Report{
		Performance: PerformanceMetrics{
			TotalReturn:      round2(TotalReturn(equity)),
			AnnualizedReturn: round2(AnnualizedReturn(equity, c.periodsPerYear)),
			SharpeRatio:      round2(SharpeRatio(returns, c.riskFreeRate, c.periodsPerYear)),
			SortinoRatio:     round2(SortinoRatio(returns, c.riskFreeRate, c.periodsPerYear)),
			CalmarRatio:      round2(CalmarRatio(equity, c.periodsPerYear)),
		},
		Risk: RiskMetrics{
			MaxDrawdown:          round2(MaxDrawdown(equity)),
			AnnualizedVolatility: round2(Volatility(returns, c.periodsPerYear)),
			VaR95:                round2(ValueAtRisk(returns, 0.95)),
			CVaR95:               round2(ConditionalVaR(returns, 0.95)),
		},
		Trades: TradeMetrics{
			TotalTrades:  len(trades),
			WinRate:      round2(WinRate(trades)),
			ProfitFactor: round2(ProfitFactor(trades)),
			AvgWin:       round2(avgWin),
			AvgLoss:      round2(avgLoss),
			WinLossRatio: round2(ratio),
		},
		Summary: Summary{
			InitialCapital: initialCapital,
			FinalCapital:   round2(final),
			TotalPnL:       round2(final - initialCapital),
		},
	}
}

func round2(x float64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

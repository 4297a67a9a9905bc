package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backtestlab/internal/domain"
	"backtestlab/internal/util"
)

var _ Provider = (*SyntheticProvider)(nil)

// tickerClass shapes the generated series for a group of tickers.
type tickerClass struct {
	tickers    []string
	minPrice   float64
	maxPrice   float64
	volatility float64 // daily
	trend      float64 // annual drift
}

var (
	classMegaCap  = tickerClass{[]string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA"}, 100, 300, 0.020, 0.20}
	classIndex    = tickerClass{[]string{"SPY", "QQQ", "DIA", "IWM"}, 300, 450, 0.012, 0.10}
	classVolatile = tickerClass{[]string{"TSLA", "GME"}, 50, 200, 0.040, 0.30}
	classDefault  = tickerClass{nil, 50, 200, 0.018, 0.12}
)

func classify(symbol string) tickerClass {
	for _, c := range []tickerClass{classMegaCap, classIndex, classVolatile} {
		for _, t := range c.tickers {
			if strings.Contains(symbol, t) {
				return c
			}
		}
	}
	return classDefault
}

// SyntheticProvider generates a reproducible geometric Brownian motion
// series for any ticker. The generator is seeded from the ticker, so the
// same request always yields the same bars. Drift alternates between the
// class trend and a mild pullback every max(n/6, 20) bars.
type SyntheticProvider struct{}

// NewSyntheticProvider creates a SyntheticProvider.
func NewSyntheticProvider() *SyntheticProvider { return &SyntheticProvider{} }

// Name returns the provider identifier.
func (p *SyntheticProvider) Name() string { return "synthetic" }

// GetBars generates one bar per business day in [start, end].
func (p *SyntheticProvider) GetBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = NormalizeSymbol(symbol)
	days := util.BusinessDays(start, end)
	n := len(days)
	if n == 0 {
		return nil, fmt.Errorf("%w: no business days between %s and %s",
			domain.ErrDataUnavailable, start.Format(DateLayout), end.Format(DateLayout))
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	c := classify(symbol)
	segment := max(n/6, 20)

	closes := make([]float64, n)
	closes[0] = c.minPrice + rng.Float64()*(c.maxPrice-c.minPrice)
	for i := 1; i < n; i++ {
		drift := c.trend
		if (i/segment)%2 == 1 {
			drift = -c.trend * 0.3
		}
		r := drift/252 + rng.NormFloat64()*c.volatility
		closes[i] = math.Max(closes[i-1]*(1+r), 0.01)
	}

	bars := make([]domain.Bar, n)
	for i, day := range days {
		cl := closes[i]
		op := cl * (1 + rng.NormFloat64()*c.volatility/4)
		hi := math.Max(op, cl) * (1 + math.Abs(rng.NormFloat64()*c.volatility/2))
		lo := math.Min(op, cl) * (1 - math.Abs(rng.NormFloat64()*c.volatility/2))
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: day,
			Open:      cents(op),
			High:      cents(hi),
			Low:       math.Max(cents(lo), 0.01),
			Close:     cents(cl),
			Volume:    50_000_000 + rng.Int64N(100_000_000),
		}
	}
	return bars, nil
}

func cents(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

package builtins

import (
	"fmt"
	"math"

	"backtestlab/internal/domain"
	"backtestlab/internal/indicator"
	"backtestlab/internal/strategy"
)

var _ strategy.Strategy = (*BollingerBandsMeanReversion)(nil)

// MeanReversionID is the registry id of BollingerBandsMeanReversion.
const MeanReversionID = "mean_reversion"

var meanReversionInfo = strategy.Info{
	ID:          MeanReversionID,
	Name:        "Mean Reversion (Bollinger Bands)",
	Description: "Buys when price is oversold (touches lower band), sells when overbought",
	Parameters: []strategy.ParamSpec{
		{Name: "window", Type: strategy.ParamInteger, Default: 20, Min: 10, Max: 50, Description: "Period for moving average and std dev calculation"},
		{Name: "num_std", Type: strategy.ParamFloat, Default: 2.0, Min: 1.0, Max: 3.0, Step: 0.5, Description: "Number of standard deviations for band width"},
	},
	TypicalUse: "Range-bound markets, capturing short-term reversions",
	Strengths:  "Exploits volatility, statistical foundation, defined entry/exit",
	Weaknesses: "Fails in strong trends, assumes normal distribution",
}

// BollingerBandsMeanReversion buys when the close falls through the lower
// band and exits when it rises through the upper band.
type BollingerBandsMeanReversion struct {
	window int
	numStd float64
}

// NewBollingerBandsMeanReversion creates the strategy. window and numStd
// must be positive.
func NewBollingerBandsMeanReversion(window int, numStd float64) (*BollingerBandsMeanReversion, error) {
	if err := strategy.Positive("window", float64(window)); err != nil {
		return nil, err
	}
	if err := strategy.Positive("num_std", numStd); err != nil {
		return nil, err
	}
	return &BollingerBandsMeanReversion{window: window, numStd: numStd}, nil
}

func newMeanReversion(params strategy.Params) (strategy.Strategy, error) {
	p, err := strategy.Resolve(meanReversionInfo.Parameters, params)
	if err != nil {
		return nil, err
	}
	return NewBollingerBandsMeanReversion(int(p["window"]), p["num_std"])
}

func (s *BollingerBandsMeanReversion) Name() string { return MeanReversionID }

func (s *BollingerBandsMeanReversion) Lookback() int { return s.window }

func (s *BollingerBandsMeanReversion) PositionPolicy() strategy.PositionPolicy {
	return strategy.PolicyPrecomputed
}

func (s *BollingerBandsMeanReversion) Params() strategy.Params {
	return strategy.Params{"window": float64(s.window), "num_std": s.numStd}
}

// Bands returns the middle, upper and lower bands for closes. Warmup bars
// are NaN.
func (s *BollingerBandsMeanReversion) Bands(closes []float64) (middle, upper, lower []float64) {
	middle = indicator.SMA(closes, s.window)
	std := indicator.RollingStd(closes, s.window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = middle[i] + s.numStd*std[i]
		lower[i] = middle[i] - s.numStd*std[i]
	}
	return middle, upper, lower
}

// GenerateSignals compares each close and its predecessor against the
// current bar's bands.
func (s *BollingerBandsMeanReversion) GenerateSignals(bars []domain.Bar) (strategy.SignalSet, error) {
	if err := strategy.RequireBars(bars, s.Lookback()); err != nil {
		return strategy.SignalSet{}, fmt.Errorf("bollinger mean reversion: %w", err)
	}

	closes := strategy.Closes(bars)
	_, upper, lower := s.Bands(closes)

	signals := make([]domain.Signal, len(bars))
	for i := 1; i < len(bars); i++ {
		if math.IsNaN(lower[i]) || math.IsNaN(upper[i]) {
			continue
		}
		prev, cur := closes[i-1], closes[i]
		switch {
		case prev >= lower[i] && cur < lower[i]:
			signals[i] = domain.SignalBuy
		case prev <= upper[i] && cur > upper[i]:
			signals[i] = domain.SignalSell
		}
	}
	return strategy.SignalSet{Signals: signals, RawPositions: longFlat(signals)}, nil
}

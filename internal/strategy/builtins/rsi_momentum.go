package builtins

import (
	"fmt"
	"math"

	"backtestlab/internal/domain"
	"backtestlab/internal/indicator"
	"backtestlab/internal/strategy"
)

var _ strategy.Strategy = (*RSIMomentum)(nil)

// MomentumID is the registry id of RSIMomentum.
const MomentumID = "momentum"

var momentumInfo = strategy.Info{
	ID:          MomentumID,
	Name:        "Momentum (RSI)",
	Description: "Buys when RSI exits oversold, sells when exits overbought",
	Parameters: []strategy.ParamSpec{
		{Name: "window", Type: strategy.ParamInteger, Default: 14, Min: 7, Max: 28, Description: "RSI calculation period (days)"},
		{Name: "oversold", Type: strategy.ParamInteger, Default: 30, Min: 10, Max: 40, Description: "Oversold threshold (buy when RSI crosses above)"},
		{Name: "overbought", Type: strategy.ParamInteger, Default: 70, Min: 60, Max: 90, Description: "Overbought threshold (sell when RSI crosses below)"},
	},
	TypicalUse: "Identifying oversold/overbought reversals",
	Strengths:  "Bounded indicator (0-100), widely used, catches reversals",
	Weaknesses: "Can stay overbought/oversold in trends, lagging",
}

// RSIMomentum goes long when RSI climbs back out of the oversold zone and
// exits when it falls back out of the overbought zone.
type RSIMomentum struct {
	window     int
	oversold   float64
	overbought float64
}

// NewRSIMomentum creates the strategy. Both thresholds must lie strictly
// inside (0, 100) with oversold below overbought.
func NewRSIMomentum(window int, oversold, overbought float64) (*RSIMomentum, error) {
	if err := strategy.Positive("window", float64(window)); err != nil {
		return nil, err
	}
	if oversold <= 0 || oversold >= 100 {
		return nil, fmt.Errorf("oversold must be between 0 and 100, got %v: %w", oversold, domain.ErrInvalidParameter)
	}
	if overbought <= 0 || overbought >= 100 {
		return nil, fmt.Errorf("overbought must be between 0 and 100, got %v: %w", overbought, domain.ErrInvalidParameter)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("oversold (%v) must be less than overbought (%v): %w", oversold, overbought, domain.ErrInvalidParameter)
	}
	return &RSIMomentum{window: window, oversold: oversold, overbought: overbought}, nil
}

func newMomentum(params strategy.Params) (strategy.Strategy, error) {
	p, err := strategy.Resolve(momentumInfo.Parameters, params)
	if err != nil {
		return nil, err
	}
	return NewRSIMomentum(int(p["window"]), p["oversold"], p["overbought"])
}

func (s *RSIMomentum) Name() string { return MomentumID }

// Lookback is one bar more than the window since RSI is built on deltas.
func (s *RSIMomentum) Lookback() int { return s.window + 1 }

func (s *RSIMomentum) PositionPolicy() strategy.PositionPolicy {
	return strategy.PolicyPrecomputed
}

func (s *RSIMomentum) Params() strategy.Params {
	return strategy.Params{
		"window":     float64(s.window),
		"oversold":   s.oversold,
		"overbought": s.overbought,
	}
}

func (s *RSIMomentum) GenerateSignals(bars []domain.Bar) (strategy.SignalSet, error) {
	if err := strategy.RequireBars(bars, s.Lookback()); err != nil {
		return strategy.SignalSet{}, fmt.Errorf("rsi momentum: %w", err)
	}

	rsi := indicator.RSI(strategy.Closes(bars), s.window)

	signals := make([]domain.Signal, len(bars))
	for i := 1; i < len(bars); i++ {
		prev, cur := rsi[i-1], rsi[i]
		if math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		switch {
		case prev <= s.oversold && cur > s.oversold:
			signals[i] = domain.SignalBuy
		case prev >= s.overbought && cur < s.overbought:
			signals[i] = domain.SignalSell
		}
	}
	return strategy.SignalSet{Signals: signals, RawPositions: longFlat(signals)}, nil
}

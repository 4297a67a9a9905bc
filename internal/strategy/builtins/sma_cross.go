// Package builtins provides the strategy implementations that ship with
// backtestlab.
package builtins

import (
	"fmt"

	"backtestlab/internal/domain"
	"backtestlab/internal/indicator"
	"backtestlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MovingAverageCrossover)(nil)

// MovingAverageID is the registry id of MovingAverageCrossover.
const MovingAverageID = "moving_average"

var movingAverageInfo = strategy.Info{
	ID:          MovingAverageID,
	Name:        "Moving Average Crossover",
	Description: "Buys when fast MA crosses above slow MA, sells on cross below",
	Parameters: []strategy.ParamSpec{
		{Name: "fast_window", Type: strategy.ParamInteger, Default: 20, Min: 5, Max: 100, Description: "Fast moving average period (days)"},
		{Name: "slow_window", Type: strategy.ParamInteger, Default: 50, Min: 20, Max: 200, Description: "Slow moving average period (days)"},
	},
	TypicalUse: "Trend following in trending markets",
	Strengths:  "Simple, captures strong trends, well-understood",
	Weaknesses: "Whipsaw in sideways markets, lagging signals",
}

// MovingAverageCrossover is a long-only trend follower. It is long while the
// fast SMA sits above the slow SMA and flat otherwise.
type MovingAverageCrossover struct {
	fastWindow int
	slowWindow int
}

// NewMovingAverageCrossover creates a MovingAverageCrossover with the given
// windows. Both must be positive and fast must be less than slow.
func NewMovingAverageCrossover(fast, slow int) (*MovingAverageCrossover, error) {
	if err := strategy.Positive("fast_window", float64(fast)); err != nil {
		return nil, err
	}
	if err := strategy.Positive("slow_window", float64(slow)); err != nil {
		return nil, err
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast_window (%d) must be less than slow_window (%d): %w", fast, slow, domain.ErrInvalidParameter)
	}
	return &MovingAverageCrossover{
		fastWindow: fast,
		slowWindow: slow,
	}, nil
}

func newMovingAverage(params strategy.Params) (strategy.Strategy, error) {
	p, err := strategy.Resolve(movingAverageInfo.Parameters, params)
	if err != nil {
		return nil, err
	}
	return NewMovingAverageCrossover(int(p["fast_window"]), int(p["slow_window"]))
}

// Name returns "moving_average".
func (s *MovingAverageCrossover) Name() string { return MovingAverageID }

// Lookback returns the slow window.
func (s *MovingAverageCrossover) Lookback() int { return s.slowWindow }

// PositionPolicy returns PolicyPrecomputed.
func (s *MovingAverageCrossover) PositionPolicy() strategy.PositionPolicy {
	return strategy.PolicyPrecomputed
}

// Params returns the configured windows.
func (s *MovingAverageCrossover) Params() strategy.Params {
	return strategy.Params{
		"fast_window": float64(s.fastWindow),
		"slow_window": float64(s.slowWindow),
	}
}

// GenerateSignals computes the raw long/flat state from the two SMAs and
// emits +1/-1 on the bars where that state changes.
func (s *MovingAverageCrossover) GenerateSignals(bars []domain.Bar) (strategy.SignalSet, error) {
	if err := strategy.RequireBars(bars, s.Lookback()); err != nil {
		return strategy.SignalSet{}, fmt.Errorf("moving average crossover: %w", err)
	}

	closes := strategy.Closes(bars)
	fast := indicator.SMA(closes, s.fastWindow)
	slow := indicator.SMA(closes, s.slowWindow)

	raw := make([]float64, len(bars))
	signals := make([]domain.Signal, len(bars))
	for i := range bars {
		// NaN comparisons are false, so warmup bars stay flat.
		if fast[i] > slow[i] {
			raw[i] = 1
		}
		if i > 0 {
			signals[i] = domain.Signal(raw[i] - raw[i-1])
		}
	}
	return strategy.SignalSet{Signals: signals, RawPositions: raw}, nil
}

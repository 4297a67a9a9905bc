package builtins

import (
	"backtestlab/internal/domain"
	"backtestlab/internal/strategy"
)

// Register adds every builtin strategy to r.
func Register(r *strategy.Registry) {
	r.Register(movingAverageInfo, newMovingAverage)
	r.Register(meanReversionInfo, newMeanReversion)
	r.Register(momentumInfo, newMomentum)
}

// NewRegistry returns a Registry holding every builtin strategy.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}

// longFlat runs the long-only state machine: a buy goes long, a sell goes
// flat, and anything else keeps the previous state.
func longFlat(signals []domain.Signal) []float64 {
	raw := make([]float64, len(signals))
	var pos float64
	for i, s := range signals {
		switch s {
		case domain.SignalBuy:
			pos = 1
		case domain.SignalSell:
			pos = 0
		}
		raw[i] = pos
	}
	return raw
}

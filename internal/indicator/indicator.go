// Package indicator implements the technical indicators the built-in
// strategies are composed from. Every function returns a slice aligned to its
// input, with NaN marking warmup positions that have no defined value.
package indicator

import (
	"math"

	"github.com/thrasher-corp/gct-ta/indicators"
)

// SMA over the trailing p points. The first p-1 values are NaN.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	if len(x) < p {
		fillNaN(out)
		return out
	}
	// gct-ta zero-fills the warmup; mark it undefined instead.
	copy(out, indicators.SMA(x, p))
	fillNaN(out[:p-1])
	return out
}

// RollingStd is the sample (n-1) standard deviation over the trailing p
// points. The first p-1 values are NaN, as is every value when p < 2.
func RollingStd(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	fillNaN(out)
	if p < 2 {
		return out
	}
	for i := p - 1; i < len(x); i++ {
		window := x[i-p+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(p)
		var ss float64
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(p-1))
	}
	return out
}

// EMA with smoothing span: alpha = 2/(span+1), seeded with the first input
// and without bias adjustment.
func EMA(x []float64, span int) []float64 {
	if span <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index with exponentially smoothed
// average gains and losses (span = window). The first delta is taken as
// zero. RSI is 100 wherever the average loss is zero.
func RSI(closes []float64, window int) []float64 {
	if window <= 0 {
		return nil
	}
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	avgGain := EMA(gains, window)
	avgLoss := EMA(losses, window)

	out := make([]float64, n)
	for i := range out {
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

func fillNaN(x []float64) {
	for i := range x {
		x[i] = math.NaN()
	}
}

// Package engine replays a strategy over a bar series and produces the
// equity curve, executed positions, and trade ledger of the simulated run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"backtestlab/internal/domain"
	"backtestlab/internal/strategy"
)

// DefaultMinBars is the shortest bar series a run accepts.
const DefaultMinBars = 50

// Result holds everything a single backtest run produces. All slices are
// aligned 1:1 with the input bars.
type Result struct {
	Strategy       string
	Dates          []time.Time
	Closes         []float64
	EquityCurve    []float64
	Positions      []float64
	Signals        []domain.Signal
	MarketReturns  []float64
	Returns        []float64 // strategy returns: position[i] * market return[i]
	Trades         []domain.Trade
	InitialCapital float64
}

// FinalEquity returns the last value of the equity curve.
func (r *Result) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1]
}

// Engine simulates strategies over historical bars. Fills happen at the
// bar's close with no costs and unconstrained sizing. An Engine holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	minBars int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for run start/finish messages.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With("component", "engine")
		}
	}
}

// WithMinBars overrides DefaultMinBars.
func WithMinBars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minBars = n
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		minBars: DefaultMinBars,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes s over bars starting from initialCapital.
//
// equity[i] = initialCapital * prod_{j<=i}(1 + position[j]*return[j]) where
// return[0] = 0 and position[0] = 0, so equity[0] == initialCapital.
func (e *Engine) Run(s strategy.Strategy, bars []domain.Bar, initialCapital float64) (*Result, error) {
	if err := e.validate(bars, initialCapital); err != nil {
		return nil, err
	}

	e.logger.Debug("backtest starting",
		"strategy", s.Name(),
		"bars", len(bars),
		"initial_capital", initialCapital,
	)

	set, err := s.GenerateSignals(bars)
	if err != nil {
		return nil, fmt.Errorf("generating %s signals: %w", s.Name(), err)
	}
	positions := strategy.Positions(s.PositionPolicy(), set)

	n := len(bars)
	res := &Result{
		Strategy:       s.Name(),
		Dates:          make([]time.Time, n),
		Closes:         make([]float64, n),
		EquityCurve:    make([]float64, n),
		Positions:      positions,
		Signals:        set.Signals,
		MarketReturns:  make([]float64, n),
		Returns:        make([]float64, n),
		InitialCapital: initialCapital,
	}

	equity := initialCapital
	for i, b := range bars {
		res.Dates[i] = b.Timestamp
		res.Closes[i] = b.Close
		if i > 0 {
			res.MarketReturns[i] = b.Close/bars[i-1].Close - 1
		}
		res.Returns[i] = positions[i] * res.MarketReturns[i]
		equity *= 1 + res.Returns[i]
		res.EquityCurve[i] = equity
	}
	res.Trades = ExtractTrades(bars, positions, initialCapital)

	e.logger.Debug("backtest complete",
		"strategy", s.Name(),
		"trades", len(res.Trades),
		"final_equity", res.FinalEquity(),
	)
	return res, nil
}

// RunMultiple runs every strategy in strategies over the same bars
// concurrently and returns the results keyed by the map's names. The first
// failure cancels the remaining runs.
func (e *Engine) RunMultiple(
	ctx context.Context,
	strategies map[string]strategy.Strategy,
	bars []domain.Bar,
	initialCapital float64,
) (map[string]*Result, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(strategies))
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, s := range strategies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Run(s, bars, initialCapital)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", name, err)
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) validate(bars []domain.Bar, initialCapital float64) error {
	if !(initialCapital > 0) || math.IsInf(initialCapital, 1) {
		return fmt.Errorf("initial capital must be positive, got %v: %w", initialCapital, domain.ErrInvalidParameter)
	}
	if len(bars) == 0 {
		return fmt.Errorf("bar series is empty: %w", domain.ErrInsufficientData)
	}
	for i, b := range bars {
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
		} {
			if !(f.v > 0) || math.IsInf(f.v, 0) {
				return fmt.Errorf("bar %d (%s): %s = %v: %w", i, b.Timestamp.Format("2006-01-02"), f.name, f.v, domain.ErrMalformedData)
			}
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: date %s does not follow %s: %w",
				i, b.Timestamp.Format("2006-01-02"), bars[i-1].Timestamp.Format("2006-01-02"), domain.ErrMalformedData)
		}
	}
	if len(bars) < e.minBars {
		return fmt.Errorf("need at least %d bars, got %d: %w", e.minBars, len(bars), domain.ErrInsufficientData)
	}
	return nil
}

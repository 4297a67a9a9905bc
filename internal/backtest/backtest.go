// Package backtest runs one end-to-end backtest request: it fetches bars,
// builds the strategy, simulates it, scores the result, and records the run.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"backtestlab/internal/domain"
	"backtestlab/internal/engine"
	"backtestlab/internal/market"
	"backtestlab/internal/performance"
	"backtestlab/internal/store"
	"backtestlab/internal/strategy"
)

// DefaultInitialCapital is used when a request leaves the capital unset.
const DefaultInitialCapital = 100000.0

// Request describes a single backtest.
type Request struct {
	Strategy       string
	Symbol         string
	Start          time.Time
	End            time.Time
	Params         strategy.Params
	InitialCapital float64 // zero selects the Backtester default
}

// Outcome is a completed run.
type Outcome struct {
	RunID    string
	Strategy string
	Symbol   string
	Start    time.Time
	End      time.Time
	Params   strategy.Params
	Result   *engine.Result
	Report   performance.Report
}

// Backtester carries the collaborators a run needs. It is built once per
// server or CLI invocation and is safe for concurrent use.
type Backtester struct {
	registry *strategy.Registry
	provider market.Provider
	engine   *engine.Engine
	calc     *performance.Calculator
	runs     store.RunStore
	capital  float64
	maxBars  int
	log      *slog.Logger
	closers  []func() error
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithRunStore records every successful run in s.
func WithRunStore(s store.RunStore) Option {
	return func(b *Backtester) { b.runs = s }
}

// WithEngine replaces the default engine.
func WithEngine(e *engine.Engine) Option {
	return func(b *Backtester) { b.engine = e }
}

// WithCalculator replaces the default performance calculator.
func WithCalculator(c *performance.Calculator) Option {
	return func(b *Backtester) { b.calc = c }
}

// WithInitialCapital sets the capital used when a request has none.
func WithInitialCapital(c float64) Option {
	return func(b *Backtester) {
		if c > 0 {
			b.capital = c
		}
	}
}

// WithMaxBars rejects requests whose series is longer than n bars. Zero
// disables the cap.
func WithMaxBars(n int) Option {
	return func(b *Backtester) { b.maxBars = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.log = l
		}
	}
}

// New creates a Backtester over registry and provider.
func New(registry *strategy.Registry, provider market.Provider, opts ...Option) *Backtester {
	b := &Backtester{
		registry: registry,
		provider: provider,
		capital:  DefaultInitialCapital,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.engine == nil {
		b.engine = engine.NewEngine(engine.WithLogger(b.log))
	}
	if b.calc == nil {
		b.calc = performance.NewCalculator(performance.DefaultRiskFreeRate, performance.DefaultPeriodsPerYear)
	}
	b.log = b.log.With("component", "backtest")
	return b
}

// Close releases the stores opened by Open.
func (b *Backtester) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Strategies describes every registered strategy.
func (b *Backtester) Strategies() []strategy.Info {
	return b.registry.Describe()
}

// Run executes req. Failures are classified with the domain sentinels:
// ErrUnknownStrategy, ErrInvalidDateRange, ErrDataUnavailable,
// ErrInvalidParameter, ErrInsufficientData, ErrMalformedData.
func (b *Backtester) Run(ctx context.Context, req Request) (*Outcome, error) {
	symbol := market.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameter)
	}
	if _, ok := b.registry.Info(req.Strategy); !ok {
		return nil, fmt.Errorf("strategy %q: %w", req.Strategy, domain.ErrUnknownStrategy)
	}
	if err := market.ValidateDateRange(req.Start, req.End); err != nil {
		return nil, err
	}
	capital := req.InitialCapital
	if capital == 0 {
		capital = b.capital
	}

	log := b.log.With("strategy", req.Strategy, "symbol", symbol)
	log.Info("running backtest",
		"start", req.Start.Format(market.DateLayout),
		"end", req.End.Format(market.DateLayout))

	bars, err := b.provider.GetBars(ctx, symbol, req.Start, req.End)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
		}
		return nil, err
	}
	if b.maxBars > 0 && len(bars) > b.maxBars {
		return nil, fmt.Errorf("%w: %d bars exceeds the limit of %d", domain.ErrInvalidParameter, len(bars), b.maxBars)
	}

	s, err := b.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	res, err := b.engine.Run(s, bars, capital)
	if err != nil {
		return nil, err
	}
	report := b.calc.Report(res.EquityCurve, res.Returns, res.Trades, capital)

	out := &Outcome{
		RunID:    uuid.NewString(),
		Strategy: req.Strategy,
		Symbol:   symbol,
		Start:    req.Start,
		End:      req.End,
		Params:   s.Params(),
		Result:   res,
		Report:   report,
	}
	b.record(ctx, out)

	log.Info("backtest complete",
		"run_id", out.RunID,
		"trades", len(res.Trades),
		"total_return", report.Performance.TotalReturn)
	return out, nil
}

// record persists out. A failed write is logged; the run itself succeeded.
func (b *Backtester) record(ctx context.Context, out *Outcome) {
	if b.runs == nil {
		return
	}
	rec := &domain.RunRecord{
		ID:             out.RunID,
		Strategy:       out.Strategy,
		Symbol:         out.Symbol,
		Start:          out.Start,
		End:            out.End,
		Params:         out.Params,
		InitialCapital: out.Result.InitialCapital,
		FinalCapital:   out.Report.Summary.FinalCapital,
		TotalReturn:    out.Report.Performance.TotalReturn,
		SharpeRatio:    out.Report.Performance.SharpeRatio,
		MaxDrawdown:    out.Report.Risk.MaxDrawdown,
		TotalTrades:    len(out.Result.Trades),
		CreatedAt:      time.Now().UTC(),
	}
	if err := b.runs.SaveRun(ctx, rec, out.Result.Trades); err != nil {
		b.log.Error("saving run", "run_id", out.RunID, "error", err)
	}
}

// Warm pre-fetches symbols for [start, end] through the provider so later
// runs are served from cache.
func (b *Backtester) Warm(ctx context.Context, symbols []string, start, end time.Time) map[string]error {
	b.log.Info("warming cache", "symbols", len(symbols),
		"start", start.Format(market.DateLayout), "end", end.Format(market.DateLayout))
	return market.Warm(ctx, b.provider, symbols, start, end, 4)
}

// Runs lists recorded runs, newest first. Without a run store the list is
// empty.
func (b *Backtester) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if b.runs == nil {
		return nil, nil
	}
	return b.runs.ListRuns(ctx, limit)
}

// RunTrades returns the trades of a recorded run.
func (b *Backtester) RunTrades(ctx context.Context, id string) ([]domain.Trade, error) {
	if b.runs == nil {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return b.runs.ListRunTrades(ctx, id)
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"backtestlab/internal/domain"
	"backtestlab/internal/market"
	"backtestlab/internal/performance"
	"backtestlab/internal/strategy"
)

// Comparison is one strategy's result in a Compare.
type Comparison struct {
	Strategy string
	Params   strategy.Params
	Trades   int
	Report   performance.Report
}

// Compare runs each of ids with default parameters over the same bars of
// symbol and returns the reports ordered by strategy id. An empty ids
// compares every registered strategy. Comparisons are not recorded.
func (b *Backtester) Compare(ctx context.Context, ids []string, symbol string, start, end time.Time, capital float64) ([]Comparison, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameter)
	}
	if len(ids) == 0 {
		ids = b.registry.List()
	}
	if err := market.ValidateDateRange(start, end); err != nil {
		return nil, err
	}
	if capital == 0 {
		capital = b.capital
	}

	strategies := make(map[string]strategy.Strategy, len(ids))
	for _, id := range ids {
		s, err := b.registry.New(id, nil)
		if err != nil {
			return nil, err
		}
		strategies[id] = s
	}

	bars, err := b.provider.GetBars(ctx, symbol, start, end)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
		}
		return nil, err
	}

	results, err := b.engine.RunMultiple(ctx, strategies, bars, capital)
	if err != nil {
		return nil, err
	}

	out := make([]Comparison, 0, len(results))
	for id, res := range results {
		out = append(out, Comparison{
			Strategy: id,
			Params:   strategies[id].Params(),
			Trades:   len(res.Trades),
			Report:   b.calc.Report(res.EquityCurve, res.Returns, res.Trades, capital),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	b.log.Info("comparison complete", "symbol", symbol, "strategies", len(out), "bars", len(bars))
	return out, nil
}

// Package store defines storage interfaces for market bars, cached bar
// ranges, and backtest run history.
package store

import (
	"context"
	"time"

	"backtestlab/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars merges a batch of bars into storage under market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// RangeCache stores the exact bar series returned for a (symbol, start, end)
// request.
type RangeCache interface {
	// LoadRange returns the cached series and true when an entry younger
	// than maxAge exists. A zero maxAge accepts any age.
	LoadRange(ctx context.Context, symbol string, start, end time.Time, maxAge time.Duration) ([]domain.Bar, bool, error)

	// SaveRange replaces the cached series for the request.
	SaveRange(ctx context.Context, symbol string, start, end time.Time, bars []domain.Bar) error
}

// RunStore persists completed backtest runs and their trades.
type RunStore interface {
	// SaveRun inserts a run and its trade ledger.
	SaveRun(ctx context.Context, run *domain.RunRecord, trades []domain.Trade) error

	// GetRun retrieves a run by ID, failing with domain.ErrNotFound.
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// ListRunTrades returns the trades of a run in execution order.
	ListRunTrades(ctx context.Context, id string) ([]domain.Trade, error)
}

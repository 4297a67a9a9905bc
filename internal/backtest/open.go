package backtest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"backtestlab/internal/config"
	"backtestlab/internal/engine"
	"backtestlab/internal/market"
	"backtestlab/internal/performance"
	"backtestlab/internal/store"
	"backtestlab/internal/strategy/builtins"
)

// Open builds a Backtester from cfg: the builtin strategies, the configured
// provider chain over a parquet cache, and a SQLite run store. Callers must
// Close it.
func Open(cfg *config.Config, logger *slog.Logger) (*Backtester, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	provider, err := market.FromConfig(cfg, ps, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}

	bt := cfg.Backtest
	b := New(builtins.NewRegistry(), provider,
		WithRunStore(runs),
		WithEngine(engine.NewEngine(engine.WithLogger(logger), engine.WithMinBars(bt.MinBars))),
		WithCalculator(performance.NewCalculator(bt.RiskFreeRate, bt.PeriodsPerYear)),
		WithInitialCapital(bt.InitialCapital),
		WithMaxBars(bt.MaxBars),
		WithLogger(logger),
	)
	b.closers = append(b.closers, runs.Close)
	return b, nil
}

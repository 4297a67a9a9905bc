package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backtestlab/internal/domain"
)

var _ Provider = (*FallbackProvider)(nil)

// FallbackProvider tries each provider in order and returns the first
// non-empty result.
type FallbackProvider struct {
	providers []Provider
	log       *slog.Logger
}

// NewFallbackProvider creates a FallbackProvider over providers.
func NewFallbackProvider(logger *slog.Logger, providers ...Provider) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{providers: providers, log: logger.With("provider", "fallback")}
}

// Name returns the provider identifier.
func (p *FallbackProvider) Name() string { return "fallback" }

// GetBars returns the first successful provider's bars. When every provider
// fails the joined errors are wrapped in domain.ErrDataUnavailable.
func (p *FallbackProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var errs []error
	for _, pr := range p.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := pr.GetBars(ctx, symbol, start, end)
		if err == nil && len(bars) > 0 {
			p.log.Debug("served", "symbol", symbol, "source", pr.Name(), "bars", len(bars))
			return bars, nil
		}
		if err == nil {
			err = errors.New("empty result")
		}
		p.log.Info("source failed, trying next", "symbol", symbol, "source", pr.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", pr.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", domain.ErrDataUnavailable)
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrDataUnavailable, NormalizeSymbol(symbol), errors.Join(errs...))
}

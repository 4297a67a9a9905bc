package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backtestlab/internal/domain"
	"backtestlab/internal/util"
)

var _ Provider = (*AlpacaProvider)(nil)

// AlpacaOptions configures an AlpacaProvider.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string // "iex" or "sip"
	RateLimitPerMin int
	MaxRetries      int
	RetryDelay      time.Duration
	Logger          *slog.Logger
}

// AlpacaProvider fetches split- and dividend-adjusted daily bars from the
// Alpaca market-data API.
type AlpacaProvider struct {
	client     *marketdata.Client
	feed       string
	limiter    *util.RateLimiter
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider. Zero MaxRetries and
// RetryDelay default to 3 attempts starting one second apart.
func NewAlpacaProvider(o AlpacaOptions) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    o.APIKey,
		APISecret: o.APISecret,
	}
	if o.DataURL != "" {
		opts.BaseURL = o.DataURL
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.Feed == "" {
		o.Feed = "iex"
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AlpacaProvider{
		client:     marketdata.NewClient(opts),
		feed:       o.Feed,
		limiter:    util.NewRateLimiter(o.RateLimitPerMin),
		maxRetries: o.MaxRetries,
		retryDelay: o.RetryDelay,
		log:        logger.With("provider", "alpaca"),
	}
}

// Name returns the provider identifier.
func (p *AlpacaProvider) Name() string { return "alpaca" }

// GetBars fetches daily bars for symbol in [start, end].
func (p *AlpacaProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = NormalizeSymbol(symbol)

	var bars []domain.Bar
	err := util.Retry(ctx, p.maxRetries, p.retryDelay, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		bars, err = p.fetch(ctx, symbol, start, end)
		if err != nil {
			p.log.Warn("fetch failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: alpaca %s: %v", domain.ErrDataUnavailable, symbol, err)
	}

	p.log.Info("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

func (p *AlpacaProvider) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, util.Permanent(ctx.Err())
	}

	// The bars endpoint treats End as exclusive.
	multiBars, err := p.client.GetMultiBars([]string{symbol}, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end.AddDate(0, 0, 1),
		Adjustment: marketdata.All,
		Feed:       p.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for sym, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			day := util.TruncateDay(ab.Timestamp)
			if day.Before(start) || day.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(sym),
				Timestamp:  day,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	if len(bars) == 0 {
		return nil, util.Permanent(fmt.Errorf("%w: alpaca returned no bars for %s", domain.ErrDataUnavailable, symbol))
	}
	sortBars(bars)
	return bars, nil
}

package market

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"backtestlab/internal/domain"
	"backtestlab/internal/store"
)

var _ Provider = (*CachingProvider)(nil)

// DefaultCacheMaxAge is how long a cached range stays fresh.
const DefaultCacheMaxAge = 24 * time.Hour

// CachingProvider is a cache-aside wrapper around another Provider. Cache
// failures are logged and never fail a request.
type CachingProvider struct {
	next   Provider
	cache  store.RangeCache
	bars   store.BarStore // optional
	maxAge time.Duration
	log    *slog.Logger
}

// CacheOption configures a CachingProvider.
type CacheOption func(*CachingProvider)

// WithBarStore also merges every fetched series into the long-lived bar
// store.
func WithBarStore(s store.BarStore) CacheOption {
	return func(p *CachingProvider) { p.bars = s }
}

// WithMaxAge overrides DefaultCacheMaxAge. Zero accepts entries of any age.
func WithMaxAge(d time.Duration) CacheOption {
	return func(p *CachingProvider) { p.maxAge = d }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(p *CachingProvider) { p.log = l }
}

// NewCachingProvider wraps next with cache.
func NewCachingProvider(next Provider, cache store.RangeCache, opts ...CacheOption) *CachingProvider {
	p := &CachingProvider{
		next:   next,
		cache:  cache,
		maxAge: DefaultCacheMaxAge,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("provider", "cache")
	return p
}

// Name returns the wrapped provider's name with a cache prefix.
func (p *CachingProvider) Name() string { return "cached(" + p.next.Name() + ")" }

// GetBars serves the request from cache when a fresh entry exists, and
// otherwise fetches from the wrapped provider and stores the result.
func (p *CachingProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = NormalizeSymbol(symbol)

	bars, ok, err := p.cache.LoadRange(ctx, symbol, start, end, p.maxAge)
	switch {
	case err != nil:
		p.log.Warn("cache read failed", "symbol", symbol, "error", err)
	case ok && len(bars) > 0:
		p.log.Debug("cache hit", "symbol", symbol, "bars", len(bars))
		return bars, nil
	}

	p.log.Debug("cache miss", "symbol", symbol)
	bars, err = p.next.GetBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SaveRange(ctx, symbol, start, end, bars); err != nil {
		p.log.Warn("cache write failed", "symbol", symbol, "error", err)
	}
	if p.bars != nil {
		if err := p.bars.WriteBars(ctx, domain.MarketUS, bars); err != nil {
			p.log.Warn("bar store write failed", "symbol", symbol, "error", err)
		}
	}
	return bars, nil
}

// Warm fetches every symbol through p so later requests for the same range
// are served from cache. The result maps each normalized symbol to its fetch
// error, nil on success. One failure does not stop the others.
func Warm(ctx context.Context, p Provider, symbols []string, start, end time.Time, workers int) map[string]error {
	if workers <= 0 {
		workers = 4
	}
	errs := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sym := range symbols {
		g.Go(func() error {
			_, err := p.GetBars(gctx, sym, start, end)
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	out := make(map[string]error, len(symbols))
	for i, sym := range symbols {
		out[NormalizeSymbol(sym)] = errs[i]
	}
	return out
}

package market

import (
	"fmt"
	"log/slog"

	"backtestlab/internal/config"
	"backtestlab/internal/store"
)

// FromConfig assembles the provider chain named by cfg.Data.Providers,
// wrapped in a CachingProvider over ps when caching is enabled. Alpaca is
// skipped when no credentials are configured.
func FromConfig(cfg *config.Config, ps *store.ParquetStore, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var chain []Provider
	for _, name := range cfg.Data.Providers {
		switch name {
		case "alpaca":
			if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
				logger.Info("alpaca provider disabled: no credentials")
				continue
			}
			chain = append(chain, NewAlpacaProvider(AlpacaOptions{
				APIKey:          cfg.Alpaca.APIKey,
				APISecret:       cfg.Alpaca.APISecret,
				DataURL:         cfg.Alpaca.DataURL,
				Feed:            cfg.Alpaca.Feed,
				RateLimitPerMin: cfg.Data.RateLimitPerMin,
				MaxRetries:      cfg.Data.MaxRetries,
				Logger:          logger,
			}))
		case "static":
			chain = append(chain, NewStaticProvider(cfg.Data.StaticDir))
		case "synthetic":
			chain = append(chain, NewSyntheticProvider())
		default:
			return nil, fmt.Errorf("unknown data provider %q", name)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable data providers in %v", cfg.Data.Providers)
	}

	var p Provider = chain[0]
	if len(chain) > 1 {
		p = NewFallbackProvider(logger, chain...)
	}
	if cfg.Data.CacheEnabled && ps != nil {
		p = NewCachingProvider(p, ps,
			WithBarStore(ps),
			WithMaxAge(cfg.Data.CacheMaxAge),
			WithCacheLogger(logger),
		)
	}
	return p, nil
}

// Package market retrieves daily OHLCV bars for a ticker over a date range.
// Providers can be stacked: a FallbackProvider tries sources in order and a
// CachingProvider keeps the exact series it served in a range cache.
package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"backtestlab/internal/domain"
)

// DateLayout is the calendar date format used by requests, cache keys, and
// static file names.
const DateLayout = "2006-01-02"

var earliestStart = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// Provider returns the daily bars of symbol between start and end,
// inclusive, in chronological order. Any retrieval failure wraps
// domain.ErrDataUnavailable.
type Provider interface {
	Name() string
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrInvalidDateRange, s)
	}
	return t, nil
}

// ValidateDateRange rejects ranges that are empty, reversed, end in the
// future, or start before 1990.
func ValidateDateRange(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s must be before end %s",
			domain.ErrInvalidDateRange, start.Format(DateLayout), end.Format(DateLayout))
	}
	if end.After(time.Now()) {
		return fmt.Errorf("%w: end %s is in the future", domain.ErrInvalidDateRange, end.Format(DateLayout))
	}
	if start.Before(earliestStart) {
		return fmt.Errorf("%w: start %s is before %s",
			domain.ErrInvalidDateRange, start.Format(DateLayout), earliestStart.Format(DateLayout))
	}
	return nil
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// sortBars orders bars by timestamp in place.
func sortBars(bars []domain.Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}

package domain

import "errors"

// Error taxonomy for the backtesting pipeline. Callers wrap these with
// fmt.Errorf("...: %w", err) and match them with errors.Is.
var (
	// ErrInvalidParameter reports a strategy or run parameter outside its
	// domain.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData reports fewer bars than a lookback or minimum
	// requires.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMalformedData reports missing OHLC values or non-chronological or
	// duplicate dates.
	ErrMalformedData = errors.New("malformed data")

	// ErrDataUnavailable reports any failure to retrieve bars from a
	// provider.
	ErrDataUnavailable = errors.New("data unavailable")

	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrNotFound         = errors.New("not found")
)

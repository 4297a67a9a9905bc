// Package domain defines the core types shared across the backtesting
// pipeline: bars, signals, trades, and persisted run records.
package domain

import "time"

// Bar is a single OHLCV period for one instrument.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Signal is a per-bar directional instruction. Zero means no new
// instruction.
type Signal int8

const (
	SignalSell Signal = -1
	SignalNone Signal = 0
	SignalBuy  Signal = 1
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Trade is a completed round trip: opened on a flat to non-flat position
// transition and closed on the matching return to flat.
type Trade struct {
	EntryDate  time.Time
	EntryPrice float64
	Direction  Direction
	Size       float64
	ExitDate   time.Time
	ExitPrice  float64
	// PnLPercent is expressed in percent units (0.05 fraction -> 5).
	PnLPercent float64
	PnLDollars float64
}

// Market identifies the venue a bar series belongs to. It selects the
// directory a ParquetStore writes into.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// RunRecord is the persisted summary of a single backtest invocation.
type RunRecord struct {
	ID             string
	Strategy       string
	Symbol         string
	Start          time.Time
	End            time.Time
	Params         map[string]float64
	InitialCapital float64
	FinalCapital   float64
	TotalReturn    float64
	SharpeRatio    float64
	MaxDrawdown    float64
	TotalTrades    int
	CreatedAt      time.Time
}

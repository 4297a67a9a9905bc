// Package httpapi serves the backtesting REST API over gin: strategy
// discovery, backtest execution, cache warming, and run history.
package httpapi

import (
	"math"
	"strconv"
	"time"

	"backtestlab/internal/domain"
	"backtestlab/internal/performance"
	"backtestlab/internal/strategy"
)

const dateLayout = "2006-01-02"

// Float is a float64 that encodes infinities as the strings "Inf" and
// "-Inf" and NaN as null, which encoding/json cannot represent.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(v):
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

func floats(x []float64) []Float {
	out := make([]Float, len(x))
	for i, v := range x {
		out[i] = Float(v)
	}
	return out
}

func dates(x []time.Time) []string {
	out := make([]string, len(x))
	for i, t := range x {
		out[i] = t.Format(dateLayout)
	}
	return out
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Strategy       string             `json:"strategy"`
	Ticker         string             `json:"ticker"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Parameters     map[string]float64 `json:"parameters,omitempty"`
	InitialCapital float64            `json:"initial_capital,omitempty"`
}

// missing returns the names of required fields left empty.
func (r BacktestRequest) missing() []string {
	var out []string
	for _, f := range []struct{ name, val string }{
		{"strategy", r.Strategy},
		{"ticker", r.Ticker},
		{"start_date", r.StartDate},
		{"end_date", r.EndDate},
	} {
		if f.val == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// CacheRequest is the body of POST /api/cache-data.
type CacheRequest struct {
	Tickers   []string `json:"tickers"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// StrategyJSON describes one registered strategy.
type StrategyJSON struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  []strategy.ParamSpec `json:"parameters"`
	TypicalUse  string               `json:"typical_use,omitempty"`
	Strengths   string               `json:"strengths,omitempty"`
	Weaknesses  string               `json:"weaknesses,omitempty"`
}

func toStrategyJSON(info strategy.Info) StrategyJSON {
	return StrategyJSON{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		Parameters:  info.Parameters,
		TypicalUse:  info.TypicalUse,
		Strengths:   info.Strengths,
		Weaknesses:  info.Weaknesses,
	}
}

// TradeJSON is one completed trade.
type TradeJSON struct {
	EntryDate  string `json:"entry_date"`
	EntryPrice Float  `json:"entry_price"`
	Direction  string `json:"direction"`
	Size       Float  `json:"size"`
	ExitDate   string `json:"exit_date"`
	ExitPrice  Float  `json:"exit_price"`
	PnLPercent Float  `json:"pnl_percent"`
	PnLDollars Float  `json:"pnl_dollars"`
}

func toTradeJSON(t domain.Trade) TradeJSON {
	return TradeJSON{
		EntryDate:  t.EntryDate.Format(dateLayout),
		EntryPrice: Float(t.EntryPrice),
		Direction:  string(t.Direction),
		Size:       Float(t.Size),
		ExitDate:   t.ExitDate.Format(dateLayout),
		ExitPrice:  Float(t.ExitPrice),
		PnLPercent: Float(t.PnLPercent),
		PnLDollars: Float(t.PnLDollars),
	}
}

func toTradesJSON(trades []domain.Trade) []TradeJSON {
	out := make([]TradeJSON, len(trades))
	for i, t := range trades {
		out[i] = toTradeJSON(t)
	}
	return out
}

// ReportJSON mirrors performance.Report.
type ReportJSON struct {
	Performance struct {
		TotalReturn      Float `json:"total_return"`
		AnnualizedReturn Float `json:"annualized_return"`
		SharpeRatio      Float `json:"sharpe_ratio"`
		SortinoRatio     Float `json:"sortino_ratio"`
		CalmarRatio      Float `json:"calmar_ratio"`
	} `json:"performance_metrics"`
	Risk struct {
		MaxDrawdown          Float `json:"max_drawdown"`
		AnnualizedVolatility Float `json:"annualized_volatility"`
		VaR95                Float `json:"var_95"`
		CVaR95               Float `json:"cvar_95"`
	} `json:"risk_metrics"`
	Trades struct {
		TotalTrades  int   `json:"total_trades"`
		WinRate      Float `json:"win_rate"`
		ProfitFactor Float `json:"profit_factor"`
		AvgWin       Float `json:"avg_win"`
		AvgLoss      Float `json:"avg_loss"`
		WinLossRatio Float `json:"win_loss_ratio"`
	} `json:"trade_metrics"`
	Summary struct {
		InitialCapital Float `json:"initial_capital"`
		FinalCapital   Float `json:"final_capital"`
		TotalPnL       Float `json:"total_pnl"`
	} `json:"summary"`
}

func toReportJSON(r performance.Report) ReportJSON {
	var out ReportJSON
	out.Performance.TotalReturn = Float(r.Performance.TotalReturn)
	out.Performance.AnnualizedReturn = Float(r.Performance.AnnualizedReturn)
	out.Performance.SharpeRatio = Float(r.Performance.SharpeRatio)
	out.Performance.SortinoRatio = Float(r.Performance.SortinoRatio)
	out.Performance.CalmarRatio = Float(r.Performance.CalmarRatio)

	out.Risk.MaxDrawdown = Float(r.Risk.MaxDrawdown)
	out.Risk.AnnualizedVolatility = Float(r.Risk.AnnualizedVolatility)
	out.Risk.VaR95 = Float(r.Risk.VaR95)
	out.Risk.CVaR95 = Float(r.Risk.CVaR95)

	out.Trades.TotalTrades = r.Trades.TotalTrades
	out.Trades.WinRate = Float(r.Trades.WinRate)
	out.Trades.ProfitFactor = Float(r.Trades.ProfitFactor)
	out.Trades.AvgWin = Float(r.Trades.AvgWin)
	out.Trades.AvgLoss = Float(r.Trades.AvgLoss)
	out.Trades.WinLossRatio = Float(r.Trades.WinLossRatio)

	out.Summary.InitialCapital = Float(r.Summary.InitialCapital)
	out.Summary.FinalCapital = Float(r.Summary.FinalCapital)
	out.Summary.TotalPnL = Float(r.Summary.TotalPnL)
	return out
}

// Period is an inclusive date range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BacktestResponse is the body of a successful POST /api/backtest.
type BacktestResponse struct {
	Success        bool               `json:"success"`
	RunID          string             `json:"run_id"`
	Strategy       string             `json:"strategy"`
	Ticker         string             `json:"ticker"`
	Period         Period             `json:"period"`
	Parameters     map[string]float64 `json:"parameters"`
	InitialCapital Float              `json:"initial_capital"`
	EquityCurve    []Float            `json:"equity_curve"`
	EquityDates    []string           `json:"equity_dates"`
	Positions      []Float            `json:"positions"`
	PositionDates  []string           `json:"position_dates"`
	Trades         []TradeJSON        `json:"trades"`
	Performance    ReportJSON         `json:"performance"`
}

// RunJSON summarizes a recorded run.
type RunJSON struct {
	ID             string             `json:"id"`
	Strategy       string             `json:"strategy"`
	Ticker         string             `json:"ticker"`
	Period         Period             `json:"period"`
	Parameters     map[string]float64 `json:"parameters"`
	InitialCapital Float              `json:"initial_capital"`
	FinalCapital   Float              `json:"final_capital"`
	TotalReturn    Float              `json:"total_return"`
	SharpeRatio    Float              `json:"sharpe_ratio"`
	MaxDrawdown    Float              `json:"max_drawdown"`
	TotalTrades    int                `json:"total_trades"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toRunJSON(r domain.RunRecord) RunJSON {
	return RunJSON{
		ID:             r.ID,
		Strategy:       r.Strategy,
		Ticker:         r.Symbol,
		Period:         Period{Start: r.Start.Format(dateLayout), End: r.End.Format(dateLayout)},
		Parameters:     r.Params,
		InitialCapital: Float(r.InitialCapital),
		FinalCapital:   Float(r.FinalCapital),
		TotalReturn:    Float(r.TotalReturn),
		SharpeRatio:    Float(r.SharpeRatio),
		MaxDrawdown:    Float(r.MaxDrawdown),
		TotalTrades:    r.TotalTrades,
		CreatedAt:      r.CreatedAt,
	}
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Available lists valid strategy ids when the requested one is unknown.
	Available []string `json:"available_strategies,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// Package client is a Go SDK for the backtestlab REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a backtest-server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Float decodes the server's number encoding, where infinities are the
// strings "Inf" and "-Inf" and NaN is null.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	switch s := string(b); s {
	case "null":
		*f = Float(math.NaN())
		return nil
	case `"Inf"`:
		*f = Float(math.Inf(1))
		return nil
	case `"-Inf"`:
		*f = Float(math.Inf(-1))
		return nil
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("decoding number %s: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
}

// Param describes one tunable strategy parameter.
type Param struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Default     float64 `json:"default"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Step        float64 `json:"step,omitempty"`
	Description string  `json:"description"`
}

// Strategy is one entry of GET /api/strategies.
type Strategy struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []Param  `json:"parameters"`
	TypicalUse  string   `json:"typical_use,omitempty"`
	Strengths   string   `json:"strengths,omitempty"`
	Weaknesses  string   `json:"weaknesses,omitempty"`
}

// BacktestRequest is the body of POST /api/backtest. Dates are YYYY-MM-DD.
type BacktestRequest struct {
	Strategy       string             `json:"strategy"`
	Ticker         string             `json:"ticker"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Parameters     map[string]float64 `json:"parameters,omitempty"`
	InitialCapital float64            `json:"initial_capital,omitempty"`
}

// Trade is one completed round trip.
type Trade struct {
	EntryDate  string `json:"entry_date"`
	EntryPrice Float  `json:"entry_price"`
	Direction  string `json:"direction"`
	Size       Float  `json:"size"`
	ExitDate   string `json:"exit_date"`
	ExitPrice  Float  `json:"exit_price"`
	PnLPercent Float  `json:"pnl_percent"`
	PnLDollars Float  `json:"pnl_dollars"`
}

// Report holds the metric sections of a backtest.
type Report struct {
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

// Period is an inclusive date range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BacktestResult is the response of POST /api/backtest.
type BacktestResult struct {
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
	Trades         []Trade            `json:"trades"`
	Performance    Report             `json:"performance"`
}

// Run summarizes a stored backtest.
type Run struct {
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

// CacheResult is the response of POST /api/cache-data.
type CacheResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Results map[string]string `json:"results"`
	Stats   struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	} `json:"stats"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Err        string   `json:"error"`
	Message    string   `json:"message"`
	Available  []string `json:"available_strategies,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backtest api: %d %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backtest api: %d %s: %s", e.StatusCode, e.Err, e.Message)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Health reports whether the server is up. It returns the server's status
// string, "healthy" when all is well.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ListStrategies returns every registered strategy, sorted by id.
func (c *Client) ListStrategies(ctx context.Context) ([]Strategy, error) {
	var out struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// RunBacktest runs one backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var out BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheData asks the server to prefetch daily bars for tickers. Empty dates
// use the server's defaults.
func (c *Client) CacheData(ctx context.Context, tickers []string, start, end string) (*CacheResult, error) {
	body := struct {
		Tickers   []string `json:"tickers"`
		StartDate string   `json:"start_date,omitempty"`
		EndDate   string   `json:"end_date,omitempty"`
	}{tickers, start, end}
	var out CacheResult
	if err := c.do(ctx, http.MethodPost, "/api/cache-data", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns the most recent stored runs, newest first. limit <= 0
// uses the server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// RunTrades returns the trades of a stored run.
func (c *Client) RunTrades(ctx context.Context, runID string) ([]Trade, error) {
	var out struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(runID)+"/trades", nil, &out); err != nil {
		return nil, err
	}
	return out.Trades, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Err = resp.Status
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

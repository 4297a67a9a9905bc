package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backtestlab/internal/backtest"
	"backtestlab/internal/domain"
	"backtestlab/internal/market"
	"backtestlab/internal/strategy"
)

// Default cache-warming range when a request omits one.
const (
	defaultCacheStart = "2018-01-01"
	defaultCacheEnd   = "2024-12-01"
)

// Backtester is the behaviour the handlers need from backtest.Backtester.
type Backtester interface {
	Strategies() []strategy.Info
	Run(ctx context.Context, req backtest.Request) (*backtest.Outcome, error)
	Warm(ctx context.Context, symbols []string, start, end time.Time) map[string]error
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
	RunTrades(ctx context.Context, id string) ([]domain.Trade, error)
}

// Server serves the REST API.
type Server struct {
	engine *gin.Engine
	bt     Backtester
	log    *slog.Logger
}

// NewServer creates a Server and registers its routes.
func NewServer(bt Backtester, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine: engine,
		bt:     bt,
		log:    log.With("component", "http"),
	}
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(s.loggerMiddleware())
	s.setupRoutes()
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/strategies", s.handleStrategies)
		api.POST("/backtest", s.handleBacktest)
		api.POST("/cache-data", s.handleCacheData)
		api.GET("/runs", s.handleRuns)
		api.GET("/runs/:id/trades", s.handleRunTrades)
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.log.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStrategies(c *gin.Context) {
	infos := s.bt.Strategies()
	out := make([]StrategyJSON, len(infos))
	for i, info := range infos {
		out[i] = toStrategyJSON(info)
	}
	c.JSON(http.StatusOK, gin.H{
		"strategies": out,
		"count":      len(out),
	})
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing required fields",
			Message: "strategy, ticker, start_date and end_date are required",
			Missing: missing,
		})
		return
	}

	start, err := market.ParseDate(req.StartDate)
	if err != nil {
		s.writeError(c, err)
		return
	}
	end, err := market.ParseDate(req.EndDate)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out, err := s.bt.Run(c.Request.Context(), backtest.Request{
		Strategy:       req.Strategy,
		Symbol:         req.Ticker,
		Start:          start,
		End:            end,
		Params:         req.Parameters,
		InitialCapital: req.InitialCapital,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	res := out.Result
	c.JSON(http.StatusOK, BacktestResponse{
		Success:        true,
		RunID:          out.RunID,
		Strategy:       out.Strategy,
		Ticker:         out.Symbol,
		Period:         Period{Start: req.StartDate, End: req.EndDate},
		Parameters:     out.Params,
		InitialCapital: Float(res.InitialCapital),
		EquityCurve:    floats(res.EquityCurve),
		EquityDates:    dates(res.Dates),
		Positions:      floats(res.Positions),
		PositionDates:  dates(res.Dates),
		Trades:         toTradesJSON(res.Trades),
		Performance:    toReportJSON(out.Report),
	})
}

func (s *Server) handleCacheData(c *gin.Context) {
	var req CacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	if len(req.Tickers) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "No tickers provided",
			Message: "Please provide list of tickers to cache",
		})
		return
	}
	if req.StartDate == "" {
		req.StartDate = defaultCacheStart
	}
	if req.EndDate == "" {
		req.EndDate = defaultCacheEnd
	}
	start, err := market.ParseDate(req.StartDate)
	if err != nil {
		s.writeError(c, err)
		return
	}
	end, err := market.ParseDate(req.EndDate)
	if err != nil {
		s.writeError(c, err)
		return
	}

	results := s.bt.Warm(c.Request.Context(), req.Tickers, start, end)
	status := make(map[string]string, len(results))
	succeeded := 0
	for sym, err := range results {
		if err != nil {
			status[sym] = "error: " + err.Error()
			continue
		}
		status[sym] = "success"
		succeeded++
	}
	failed := len(results) - succeeded

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Cached %d tickers, %d failed", succeeded, failed),
		"results": status,
		"stats": gin.H{
			"total":     len(req.Tickers),
			"succeeded": succeeded,
			"failed":    failed,
		},
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid limit", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.bt.Runs(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]RunJSON, len(runs))
	for i, r := range runs {
		out[i] = toRunJSON(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out, "count": len(out)})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	id := c.Param("id")
	trades, err := s.bt.RunTrades(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "trades": toTradesJSON(trades), "count": len(trades)})
}

// writeError maps a domain error to a status code and JSON body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: "Internal server error", Message: err.Error()}

	switch {
	case errors.Is(err, domain.ErrUnknownStrategy):
		status = http.StatusBadRequest
		resp.Error = "Invalid strategy"
		for _, info := range s.bt.Strategies() {
			resp.Available = append(resp.Available, info.ID)
		}
	case errors.Is(err, domain.ErrInvalidDateRange):
		status = http.StatusBadRequest
		resp.Error = "Invalid date range"
	case errors.Is(err, domain.ErrDataUnavailable):
		status = http.StatusBadRequest
		resp.Error = "Data fetch failed"
	case errors.Is(err, domain.ErrInvalidParameter):
		status = http.StatusBadRequest
		resp.Error = "Invalid strategy parameters"
	case errors.Is(err, domain.ErrInsufficientData):
		status = http.StatusBadRequest
		resp.Error = "Insufficient data"
	case errors.Is(err, domain.ErrMalformedData):
		status = http.StatusBadRequest
		resp.Error = "Malformed data"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "Not found"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		s.log.Warn("request rejected", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, resp)
}

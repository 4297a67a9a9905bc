package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"backtestlab/internal/backtest"
	"backtestlab/internal/domain"
	"backtestlab/internal/market"
	"backtestlab/internal/strategy"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "backtest.v1.BacktestService"

const (
	methodRunBacktest    = "/" + ServiceName + "/RunBacktest"
	methodListStrategies = "/" + ServiceName + "/ListStrategies"
)

// BacktestServiceServer is the server API for BacktestService. Requests and
// responses are google.protobuf.Struct values with the same field names as
// the REST API.
type BacktestServiceServer interface {
	RunBacktest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterBacktestServiceServer registers srv on gs.
func RegisterBacktestServiceServer(gs grpc.ServiceRegistrar, srv BacktestServiceServer) {
	gs.RegisterService(&backtestServiceDesc, srv)
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BacktestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunBacktest", Handler: unaryHandler(methodRunBacktest, BacktestServiceServer.RunBacktest)},
		{MethodName: "ListStrategies", Handler: unaryHandler(methodListStrategies, BacktestServiceServer.ListStrategies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backtest/v1/backtest.proto",
}

func unaryHandler(fullMethod string, call func(BacktestServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BacktestServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BacktestServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// BacktestServiceClient calls BacktestService over a gRPC connection.
type BacktestServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBacktestServiceClient creates a client over cc.
func NewBacktestServiceClient(cc grpc.ClientConnInterface) *BacktestServiceClient {
	return &BacktestServiceClient{cc: cc}
}

// RunBacktest runs a backtest on the server.
func (c *BacktestServiceClient) RunBacktest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRunBacktest, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStrategies lists the server's strategies.
func (c *BacktestServiceClient) ListStrategies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListStrategies, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// Runner is the part of backtest.Backtester the gRPC service uses.
type Runner interface {
	Strategies() []strategy.Info
	Run(ctx context.Context, req backtest.Request) (*backtest.Outcome, error)
}

// BacktestService implements BacktestServiceServer on top of a Runner.
type BacktestService struct {
	runner Runner
	log    *slog.Logger
}

var _ BacktestServiceServer = (*BacktestService)(nil)

// NewBacktestService creates a BacktestService.
func NewBacktestService(runner Runner, log *slog.Logger) *BacktestService {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestService{runner: runner, log: log.With("component", "grpc")}
}

// ListStrategies returns {strategies: [...], count}.
func (s *BacktestService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	infos := s.runner.Strategies()
	list := make([]any, len(infos))
	for i, info := range infos {
		params := make([]any, len(info.Parameters))
		for j, p := range info.Parameters {
			params[j] = map[string]any{
				"name":        p.Name,
				"type":        string(p.Type),
				"default":     p.Default,
				"min":         p.Min,
				"max":         p.Max,
				"description": p.Description,
			}
		}
		list[i] = map[string]any{
			"id":          info.ID,
			"name":        info.Name,
			"description": info.Description,
			"parameters":  params,
		}
	}
	out, err := structpb.NewStruct(map[string]any{"strategies": list, "count": len(list)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding strategies: %v", err)
	}
	return out, nil
}

// RunBacktest takes {strategy, ticker, start_date, end_date, parameters?,
// initial_capital?} and returns the run summary and report.
func (s *BacktestService) RunBacktest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := s.runner.Run(ctx, req)
	if err != nil {
		s.log.Warn("backtest failed", "strategy", req.Strategy, "ticker", req.Symbol, "error", err)
		return nil, toStatus(err)
	}

	r := out.Report
	params := make(map[string]any, len(out.Params))
	for k, v := range out.Params {
		params[k] = v
	}
	resp, err := structpb.NewStruct(map[string]any{
		"success":    true,
		"run_id":     out.RunID,
		"strategy":   out.Strategy,
		"ticker":     out.Symbol,
		"parameters": params,
		"period": map[string]any{
			"start": out.Start.Format(market.DateLayout),
			"end":   out.End.Format(market.DateLayout),
		},
		"bars": len(out.Result.EquityCurve),
		"performance": map[string]any{
			"performance_metrics": map[string]any{
				"total_return":      r.Performance.TotalReturn,
				"annualized_return": r.Performance.AnnualizedReturn,
				"sharpe_ratio":      r.Performance.SharpeRatio,
				"sortino_ratio":     r.Performance.SortinoRatio,
				"calmar_ratio":      r.Performance.CalmarRatio,
			},
			"risk_metrics": map[string]any{
				"max_drawdown":          r.Risk.MaxDrawdown,
				"annualized_volatility": r.Risk.AnnualizedVolatility,
				"var_95":                r.Risk.VaR95,
				"cvar_95":               r.Risk.CVaR95,
			},
			"trade_metrics": map[string]any{
				"total_trades":   r.Trades.TotalTrades,
				"win_rate":       r.Trades.WinRate,
				"profit_factor":  r.Trades.ProfitFactor,
				"avg_win":        r.Trades.AvgWin,
				"avg_loss":       r.Trades.AvgLoss,
				"win_loss_ratio": r.Trades.WinLossRatio,
			},
			"summary": map[string]any{
				"initial_capital": r.Summary.InitialCapital,
				"final_capital":   r.Summary.FinalCapital,
				"total_pnl":       r.Summary.TotalPnL,
			},
		},
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return resp, nil
}

func decodeRunRequest(in *structpb.Struct) (backtest.Request, error) {
	f := in.GetFields()
	str := func(name string) string { return f[name].GetStringValue() }

	var missing []string
	for _, name := range []string{"strategy", "ticker", "start_date", "end_date"} {
		if str(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return backtest.Request{}, &missingFieldsError{fields: missing}
	}

	start, err := market.ParseDate(str("start_date"))
	if err != nil {
		return backtest.Request{}, err
	}
	end, err := market.ParseDate(str("end_date"))
	if err != nil {
		return backtest.Request{}, err
	}

	req := backtest.Request{
		Strategy:       str("strategy"),
		Symbol:         str("ticker"),
		Start:          start,
		End:            end,
		InitialCapital: f["initial_capital"].GetNumberValue(),
	}
	if ps := f["parameters"].GetStructValue(); ps != nil {
		req.Params = make(strategy.Params, len(ps.GetFields()))
		for k, v := range ps.GetFields() {
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return backtest.Request{}, fmt.Errorf("%w: parameter %s must be a number", domain.ErrInvalidParameter, k)
			}
			req.Params[k] = n.NumberValue
		}
	}
	return req, nil
}

type missingFieldsError struct{ fields []string }

func (e *missingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.fields, ", ")
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	var missing *missingFieldsError
	switch {
	case errors.As(err, &missing),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrUnknownStrategy),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrMalformedData):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrDataUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// loggingInterceptor logs every unary call with its status code and latency.
func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency", time.Since(start),
		)
		return resp, err
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"backtestlab/internal/api"
	"backtestlab/pkg/client"
)

var (
	serverURL     string
	grpcAddr      string
	remoteTimeout time.Duration
)

var remoteCommand = &cli.Command{
	Name:      "remote",
	Usage:     "talks to a running backtest-server",
	ArgsUsage: "<command> <args>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "server",
			Value:       "http://localhost:8080",
			Usage:       "REST base URL",
			EnvVars:     []string{"BACKTEST_SERVER"},
			Destination: &serverURL,
		},
		&cli.StringFlag{
			Name:        "grpc",
			Usage:       "gRPC address; when set, strategies and run go over gRPC",
			Destination: &grpcAddr,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Value:       5 * time.Minute,
			Usage:       "request timeout",
			Destination: &remoteTimeout,
		},
	},
	Subcommands: []*cli.Command{
		{
			Name:   "health",
			Usage:  "checks the server is up",
			Action: remoteHealth,
		},
		{
			Name:   "strategies",
			Usage:  "lists the server's strategies",
			Action: remoteStrategies,
		},
		{
			Name:  "run",
			Usage: "runs a backtest on the server",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "strategy id", Required: true},
				tickerFlag,
				capitalFlag,
				paramFlag,
			}, dateFlags...),
			Action: remoteRun,
		},
		{
			Name:  "runs",
			Usage: "lists the server's recorded runs",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to list"},
			},
			Action: remoteRuns,
		},
	},
}

func remoteContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, remoteTimeout)
}

func setupGRPC() (*grpc.ClientConn, *api.BacktestServiceClient, error) {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", grpcAddr, err)
	}
	return conn, api.NewBacktestServiceClient(conn), nil
}

func remoteHealth(c *cli.Context) error {
	ctx, cancel := remoteContext(c)
	defer cancel()
	status, err := client.NewClient(serverURL).Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", serverURL, status)
	return nil
}

func remoteStrategies(c *cli.Context) error {
	ctx, cancel := remoteContext(c)
	defer cancel()

	if grpcAddr != "" {
		conn, svc, err := setupGRPC()
		if err != nil {
			return err
		}
		defer conn.Close()
		out, err := svc.ListStrategies(ctx, &structpb.Struct{})
		if err != nil {
			return err
		}
		return printStruct(c.App.Writer, out)
	}

	strategies, err := client.NewClient(serverURL).ListStrategies(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, s := range strategies {
		fmt.Fprintf(tw, "%s\t%s\t%d parameters\n", s.ID, s.Name, len(s.Parameters))
	}
	return tw.Flush()
}

func remoteRun(c *cli.Context) error {
	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext(c)
	defer cancel()

	if grpcAddr != "" {
		conn, svc, err := setupGRPC()
		if err != nil {
			return err
		}
		defer conn.Close()
		fields := map[string]any{
			"strategy":        c.String("strategy"),
			"ticker":          c.String("ticker"),
			"start_date":      c.String("start"),
			"end_date":        c.String("end"),
			"initial_capital": c.Float64("capital"),
		}
		if len(params) > 0 {
			ps := make(map[string]any, len(params))
			for k, v := range params {
				ps[k] = v
			}
			fields["parameters"] = ps
		}
		in, err := structpb.NewStruct(fields)
		if err != nil {
			return err
		}
		out, err := svc.RunBacktest(ctx, in)
		if err != nil {
			return err
		}
		return printStruct(c.App.Writer, out)
	}

	res, err := client.NewClient(serverURL).RunBacktest(ctx, client.BacktestRequest{
		Strategy:       c.String("strategy"),
		Ticker:         c.String("ticker"),
		StartDate:      c.String("start"),
		EndDate:        c.String("end"),
		Parameters:     params,
		InitialCapital: c.Float64("capital"),
	})
	if err != nil {
		return err
	}
	w := c.App.Writer
	p := res.Performance
	fmt.Fprintf(w, "run %s\n%s on %s, %s to %s, %d bars\nparameters: %s\n\n",
		res.RunID, res.Strategy, res.Ticker, res.Period.Start, res.Period.End,
		len(res.EquityCurve), formatParams(res.Parameters))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "final capital\t%.2f\n", p.Summary.FinalCapital)
	fmt.Fprintf(tw, "total return %%\t%.2f\n", p.Performance.TotalReturn)
	fmt.Fprintf(tw, "sharpe\t%.2f\n", p.Performance.SharpeRatio)
	fmt.Fprintf(tw, "max drawdown %%\t%.2f\n", p.Risk.MaxDrawdown)
	fmt.Fprintf(tw, "trades\t%d\n", p.Trades.TotalTrades)
	fmt.Fprintf(tw, "profit factor\t%.2f\n", p.Trades.ProfitFactor)
	return tw.Flush()
}

func remoteRuns(c *cli.Context) error {
	ctx, cancel := remoteContext(c)
	defer cancel()
	runs, err := client.NewClient(serverURL).ListRuns(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.App.Writer, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tstrategy\tticker\tperiod\treturn %\tsharpe\ttrades")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%.2f\t%.2f\t%d\n",
			r.ID, r.Strategy, r.Ticker, r.Period.Start, r.Period.End,
			r.TotalReturn, r.SharpeRatio, r.TotalTrades)
	}
	return tw.Flush()
}

func printStruct(w io.Writer, s *structpb.Struct) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"backtestlab/internal/backtest"
	"backtestlab/internal/market"
	"backtestlab/internal/strategy"
)

var (
	dateFlags = []cli.Flag{
		&cli.StringFlag{
			Name:     "start",
			Usage:    "first date, YYYY-MM-DD",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "end",
			Usage:    "last date, YYYY-MM-DD",
			Required: true,
		},
	}
	tickerFlag = &cli.StringFlag{
		Name:     "ticker",
		Aliases:  []string{"t"},
		Usage:    "symbol to test, e.g. SPY",
		Required: true,
	}
	capitalFlag = &cli.Float64Flag{
		Name:  "capital",
		Usage: "initial capital; 0 uses the configured default",
	}
	paramFlag = &cli.StringSliceFlag{
		Name:    "param",
		Aliases: []string{"p"},
		Usage:   "strategy parameter as name=value, repeatable",
	}
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "runs one backtest locally and records it",
	ArgsUsage: "--strategy <id> --ticker <symbol> --start <date> --end <date> [--param name=value]...",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "strategy",
			Aliases:  []string{"s"},
			Usage:    "strategy id, see the strategies command",
			Required: true,
		},
		tickerFlag,
		capitalFlag,
		paramFlag,
		&cli.BoolFlag{
			Name:  "trades",
			Usage: "print every trade",
		},
	}, dateFlags...),
	Action: runLocal,
}

var compareCommand = &cli.Command{
	Name:  "compare",
	Usage: "runs several strategies with default parameters over the same data",
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:    "strategy",
			Aliases: []string{"s"},
			Usage:   "strategy id, repeatable; defaults to all",
		},
		tickerFlag,
		capitalFlag,
	}, dateFlags...),
	Action: compareLocal,
}

var strategiesCommand = &cli.Command{
	Name:   "strategies",
	Usage:  "lists the available strategies and their parameters",
	Action: listStrategies,
}

var cacheCommand = &cli.Command{
	Name:      "cache",
	Usage:     "prefetches daily bars into the local parquet cache",
	ArgsUsage: "<ticker>...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "start", Value: "2018-01-01", Usage: "first date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "end", Value: "2024-12-01", Usage: "last date, YYYY-MM-DD"},
	},
	Action: cacheLocal,
}

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "lists recorded runs, or the trades of one run",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to list"},
		&cli.StringFlag{Name: "id", Usage: "print the trades of this run"},
	},
	Action: listRuns,
}

// parseParams turns name=value pairs into strategy parameters.
func parseParams(pairs []string) (strategy.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(strategy.Params, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: want name=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

func openBacktester() (*backtest.Backtester, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return backtest.Open(cfg, slog.Default())
}

func runLocal(c *cli.Context) error {
	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}
	start, err := market.ParseDate(c.String("start"))
	if err != nil {
		return err
	}
	end, err := market.ParseDate(c.String("end"))
	if err != nil {
		return err
	}

	bt, err := openBacktester()
	if err != nil {
		return err
	}
	defer bt.Close()

	out, err := bt.Run(c.Context, backtest.Request{
		Strategy:       c.String("strategy"),
		Symbol:         c.String("ticker"),
		Start:          start,
		End:            end,
		Params:         params,
		InitialCapital: c.Float64("capital"),
	})
	if err != nil {
		return err
	}
	printOutcome(c.App.Writer, out)
	if c.Bool("trades") {
		printTrades(c.App.Writer, out.Result.Trades)
	}
	return nil
}

func compareLocal(c *cli.Context) error {
	start, err := market.ParseDate(c.String("start"))
	if err != nil {
		return err
	}
	end, err := market.ParseDate(c.String("end"))
	if err != nil {
		return err
	}

	bt, err := openBacktester()
	if err != nil {
		return err
	}
	defer bt.Close()

	results, err := bt.Compare(c.Context, c.StringSlice("strategy"), c.String("ticker"), start, end, c.Float64("capital"))
	if err != nil {
		return err
	}
	printComparison(c.App.Writer, results)
	return nil
}

func listStrategies(c *cli.Context) error {
	bt, err := openBacktester()
	if err != nil {
		return err
	}
	defer bt.Close()
	printStrategies(c.App.Writer, bt.Strategies())
	return nil
}

func cacheLocal(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}
	start, err := market.ParseDate(c.String("start"))
	if err != nil {
		return err
	}
	end, err := market.ParseDate(c.String("end"))
	if err != nil {
		return err
	}

	bt, err := openBacktester()
	if err != nil {
		return err
	}
	defer bt.Close()

	results := bt.Warm(c.Context, c.Args().Slice(), start, end)
	failed := 0
	for _, sym := range sortedKeys(results) {
		if err := results[sym]; err != nil {
			failed++
			fmt.Fprintf(c.App.Writer, "%-8s error: %v\n", sym, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%-8s ok\n", sym)
	}
	fmt.Fprintf(c.App.Writer, "cached %d tickers, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func listRuns(c *cli.Context) error {
	bt, err := openBacktester()
	if err != nil {
		return err
	}
	defer bt.Close()

	if id := c.String("id"); id != "" {
		trades, err := bt.RunTrades(c.Context, id)
		if err != nil {
			return err
		}
		printTrades(c.App.Writer, trades)
		return nil
	}

	runs, err := bt.Runs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	printRuns(c.App.Writer, runs)
	return nil
}

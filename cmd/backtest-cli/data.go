package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"backtestlab/internal/domain"
	"backtestlab/internal/market"
	"backtestlab/internal/store"
)

var dataCommand = &cli.Command{
	Name:      "data",
	Usage:     "inspects the local parquet bar store",
	ArgsUsage: "<command> <args>",
	Subcommands: []*cli.Command{
		{
			Name:   "symbols",
			Usage:  "lists symbols with stored daily bars",
			Action: listStoredSymbols,
		},
		{
			Name:  "export",
			Usage: "writes stored bars as CSV, by default into the static provider directory",
			Flags: append([]cli.Flag{
				tickerFlag,
				&cli.StringFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Usage:   "output file; - for stdout",
				},
			}, dateFlags...),
			Action: exportBars,
		},
	},
}

func listStoredSymbols(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	symbols, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(c.Context, domain.MarketUS)
	if err != nil {
		return err
	}
	for _, s := range symbols {
		fmt.Fprintln(c.App.Writer, s)
	}
	return nil
}

func exportBars(c *cli.Context) error {
	cfg, err := loadConfig()
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
	symbol := market.NormalizeSymbol(c.String("ticker"))

	bars, err := store.NewParquetStore(cfg.Storage.DataDir).ReadBars(c.Context, symbol, domain.MarketUS, start, end)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s: no stored bars between %s and %s", symbol, c.String("start"), c.String("end"))
	}

	out := c.String("out")
	if out == "-" {
		return market.WriteCSV(c.App.Writer, bars)
	}
	if out == "" {
		out = market.NewStaticProvider(cfg.Data.StaticDir).Path(symbol, start, end)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := market.WriteCSV(f, bars); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d bars to %s\n", len(bars), out)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"backtestlab/internal/config"
	"backtestlab/internal/util"
)

const version = "0.2.0"

var (
	configPath string
	logLevel   string
)

func main() {
	app := cli.NewApp()
	app.Name = "backtest-cli"
	app.Version = version
	app.EnableBashCompletion = true
	app.Usage = "run and inspect trading strategy backtests"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Value:       config.Path("config/backtest.yaml"),
			Usage:       "path to the YAML config used by local commands",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "warn",
			Usage:       "log level for local commands (debug, info, warn, error)",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		compareCommand,
		strategiesCommand,
		cacheCommand,
		runsCommand,
		dataCommand,
		remoteCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads the config for local commands and installs a text
// logger on stderr so it does not mix with command output.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	util.SetDefault(util.NewLogger(logLevel, "text", os.Stderr))
	return cfg, nil
}

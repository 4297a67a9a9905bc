package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"backtestlab/internal/api"
	"backtestlab/internal/backtest"
	"backtestlab/internal/config"
	"backtestlab/internal/util"
)

func main() {
	cfgPath := flag.String("config", config.Path("config/backtest.yaml"), "path to YAML config")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	util.SetDefault(logger)

	bt, err := backtest.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to open backtester", "error", err)
		os.Exit(1)
	}
	defer bt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("backtest-server starting",
		"http", cfg.Server.Addr(),
		"grpc", cfg.Server.GRPCAddr(),
		"providers", cfg.Data.Providers)

	srv := api.NewServer(cfg, bt, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		bt.Close()
		os.Exit(1)
	}
	logger.Info("backtest-server stopped")
}

// Command priceaction-server serves the BacktestService over gRPC.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"priceaction/internal/api"
	"priceaction/internal/backtest"
	"priceaction/internal/config"
	"priceaction/internal/store"
	"priceaction/internal/strategy"
	"priceaction/internal/util"
)

func main() {
	cfgFlag := flag.String("c", "", "config file (default $PRICEACTION_CONFIG or config/priceaction.yaml)")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	runner := &backtest.Runner{
		Bars:     store.NewParquetStore(cfg.Storage.DataDir),
		Registry: strategy.Builtin(),
		Log:      logger,
	}
	if cfg.Storage.SQLitePath != "" {
		journal, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()
		runner.Runs = journal
	}

	srv := api.NewServer(cfg.Server.Addr(), api.NewBacktestService(runner, cfg, logger), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting priceaction-server", "addr", cfg.Server.Addr(), "strategies", runner.Registry.List())
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// Command priceaction-fetch downloads crypto bars from Alpaca into the
// Parquet bar archive.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"priceaction/internal/config"
	"priceaction/internal/gather/crypto"
	"priceaction/internal/store"
	"priceaction/internal/util"
)

func main() {
	cfgFlag := flag.String("c", "", "config file (default $PRICEACTION_CONFIG or config/priceaction.yaml)")
	interval := flag.String("interval", "", "bar interval to fetch (default data.interval)")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	iv := *interval
	if iv == "" {
		iv = cfg.Data.Interval
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	gatherer, err := crypto.NewBarGatherer(cfg.Alpaca, cfg.Gather, iv, pstore, logger)
	if err != nil {
		log.Fatalf("failed to create gatherer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting priceaction-fetch", "interval", iv, "symbols", cfg.Gather.Symbols, "dataDir", cfg.Storage.DataDir)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("fetch error: %v", err)
	}
}

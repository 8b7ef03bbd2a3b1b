// Command priceaction runs the breakout backtest over archived bars and
// lists journaled runs.
//
// Usage:
//
//	priceaction [-c config.yaml] [-m backtest|b|hypertune|h]
//	priceaction runs [-c config.yaml] [-n 20] [-trades RUN_ID]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"priceaction/internal/backtest"
	"priceaction/internal/config"
	"priceaction/internal/engine"
	"priceaction/internal/report"
	"priceaction/internal/store"
	"priceaction/internal/strategy"
	"priceaction/internal/util"
)

// Mode is the top-level action selected with -m.
type Mode string

const (
	ModeBacktest  Mode = "backtest"
	ModeHypertune Mode = "hypertune"
)

// ErrNotImplemented is returned for modes that are accepted but not built.
var ErrNotImplemented = errors.New("not implemented")

// ParseMode accepts the long names and their one-letter aliases.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "backtest", "b":
		return ModeBacktest, nil
	case "hypertune", "h":
		return ModeHypertune, nil
	}
	return "", fmt.Errorf("unknown mode %q (want backtest|b|hypertune|h)", s)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "priceaction:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "runs" {
		return runRuns(ctx, args[1:], stdout)
	}

	fs := flag.NewFlagSet("priceaction", flag.ContinueOnError)
	cfgFlag := fs.String("c", "", "config file (default $PRICEACTION_CONFIG or config/priceaction.yaml)")
	modeFlag := fs.String("m", "backtest", "mode: backtest|b|hypertune|h")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	if mode == ModeHypertune {
		return fmt.Errorf("hypertune: %w", ErrNotImplemented)
	}

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	return runBacktest(ctx, cfg, logger, stdout)
}

func runBacktest(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	from, to, err := cfg.Data.Range()
	if err != nil {
		return err
	}
	if err := cfg.Setting.Validate(); err != nil {
		return err
	}

	runner := &backtest.Runner{
		Bars:     store.NewParquetStore(cfg.Storage.DataDir),
		Registry: strategy.Builtin(),
		Log:      logger,
	}
	if cfg.Storage.SQLitePath != "" {
		journal, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer journal.Close()
		runner.Runs = journal
	}

	out, err := runner.Run(ctx, backtest.Job{
		Symbol:   cfg.Data.Symbol,
		Interval: cfg.Data.Interval,
		From:     from,
		To:       to,
		Setting:  cfg.Setting,
		Sink:     engine.NewLogSink(logger.With("component", "trade_log")),
	})
	if err != nil {
		return err
	}

	return report.WriteSummary(stdout, report.Summary{
		Run:        out.Run,
		Strategy:   cfg.Setting.Strategy,
		OpenTrades: len(out.Result.Open),
		Stats:      report.Aggregate(out.Result.Closed, out.Run.Summary.InitialCapital),
	})
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("priceaction runs", flag.ContinueOnError)
	cfgFlag := fs.String("c", "", "config file")
	limit := fs.Int("n", 20, "number of runs to list (0 for all)")
	tradesOf := fs.String("trades", "", "print the closed trades of this run instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.SQLitePath == "" {
		return errors.New("storage.sqlite_path is not configured")
	}
	journal, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	if *tradesOf != "" {
		return printTrades(ctx, journal, *tradesOf, stdout)
	}

	runs, err := journal.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	return report.WriteRuns(stdout, runs)
}

func printTrades(ctx context.Context, journal store.RunStore, runID string, stdout io.Writer) error {
	run, err := journal.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	trades, err := journal.GetTrades(ctx, runID)
	if err != nil {
		return err
	}
	return report.WriteTrades(stdout, run, trades)
}

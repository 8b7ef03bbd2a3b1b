// Package store defines storage interfaces for the bar archive and the run
// journal, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"
	"time"

	"priceaction/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves OHLC bars per symbol and interval.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing any stored bar with the
	// same open time.
	WriteBars(ctx context.Context, symbol, interval string, bars []domain.Bar) error

	// ReadBars returns bars whose open time lies within [start, end], in
	// ascending open-time order.
	ReadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore journals finished backtest runs and their closed trades.
type RunStore interface {
	// SaveRun inserts a run record.
	SaveRun(ctx context.Context, run domain.Run) error

	// SaveTrades inserts the closed-trade history of a run, in closing order.
	SaveTrades(ctx context.Context, runID string, trades []domain.ClosedTrade) error

	// GetRun returns a single run by ID.
	GetRun(ctx context.Context, id string) (domain.Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// GetTrades returns the closed trades of a run in closing order.
	GetTrades(ctx context.Context, runID string) ([]domain.ClosedTrade, error)
}

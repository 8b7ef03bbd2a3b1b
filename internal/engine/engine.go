// Package engine runs a strategy over a bar sequence, simulating trades and
// accumulating performance metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/strategy"
)

// ErrEngineUsed is returned when Run is called on an engine that has
// already processed bars. Each run needs a fresh Engine.
var ErrEngineUsed = errors.New("engine already used")

// Result is the outcome of a run.
type Result struct {
	Summary domain.Summary
	Ledger  Ledger
	Closed  []domain.ClosedTrade
	Open    []domain.Trade
	Bars    int
}

// ProfitFactor returns gross profit over gross loss of the closed trades.
// It is 0 when there are no losses.
func (r *Result) ProfitFactor() float64 {
	var gain, loss float64
	for _, c := range r.Closed {
		if c.Profit >= 0 {
			gain += c.Profit
		} else {
			loss -= c.Profit
		}
	}
	if loss == 0 {
		return 0
	}
	return gain / loss
}

// Engine drives one backtest: for every bar it first resolves exits of the
// open trades, then feeds the bar to the strategy and admits the entry it
// asks for. Engines hold run-scoped state and are not safe for concurrent
// use; concurrent runs each need their own Engine.
type Engine struct {
	strategy strategy.Strategy
	book     *TradeBook
	metrics  *Metrics
	sink     Sink
	log      *slog.Logger
	bars     int
}

// New creates an Engine for one run. sink may be nil; log defaults to
// slog.Default().
func New(s config.Setting, strat strategy.Strategy, sink Sink, log *slog.Logger) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = discard{}
	}
	if log == nil {
		log = slog.Default()
	}
	metrics := NewMetrics(s.InitialCapital)
	return &Engine{
		strategy: strat,
		book:     NewTradeBook(NewRiskManager(s), metrics, s.FeeRate),
		metrics:  metrics,
		sink:     sink,
		log:      log.With("component", "engine", "strategy", strat.Name()),
	}, nil
}

// Run validates bars and processes them in order, returning the final
// result. The context is checked between bars.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) (*Result, error) {
	if e.bars > 0 {
		return nil, ErrEngineUsed
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("validating bars: %w", err)
	}

	e.log.Info("backtest starting", "bars", len(bars))
	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.Step(bar)
	}

	res := e.Result()
	e.log.Info("backtest finished",
		"bars", res.Bars,
		"win", res.Summary.Wins,
		"lose", res.Summary.Losses,
		"usd_balance", res.Summary.Balance,
		"total_fee", res.Summary.TotalFee,
		"total_profit", res.Summary.TotalProfit,
		"open_trades", len(res.Open),
	)
	return res, nil
}

// Step processes a single bar. Bars must arrive in strictly increasing time
// order; Step does not check.
func (e *Engine) Step(bar domain.Bar) {
	e.bars++

	// Phase 1: exits. A trade opened on this bar is not checked until the
	// next one.
	for _, c := range e.book.Resolve(bar) {
		e.sink.TradeClosed(c)
	}

	// Phase 2: entries.
	held := strategy.Held{Long: e.book.Has(domain.Long), Short: e.book.Has(domain.Short)}
	d := e.strategy.OnBar(bar, held)
	side, ok := d.Signal.Side()
	if !ok {
		return
	}
	t, err := e.book.Open(side, bar, d.Reference)
	if err != nil {
		e.log.Debug("entry refused", "side", side.String(), "close", bar.Close, "reference", d.Reference, "error", err)
		return
	}
	e.log.Debug("trade opened",
		"side", t.Side.String(),
		"entry_price", t.EntryPrice,
		"stop_loss", t.StopLoss,
		"take_profit", t.TakeProfit,
		"size", t.Size,
		"fee", t.EntryFee,
	)
}

// Result returns the state of the run so far.
func (e *Engine) Result() *Result {
	return &Result{
		Summary: e.metrics.Snapshot(),
		Ledger:  e.metrics.Ledger(),
		Closed:  e.book.Closed(),
		Open:    e.book.OpenTrades(),
		Bars:    e.bars,
	}
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"priceaction/internal/domain"
)

// Sink receives one record per closed trade, in closing order.
type Sink interface {
	TradeClosed(c domain.ClosedTrade)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(domain.ClosedTrade)

// TradeClosed calls f(c).
func (f SinkFunc) TradeClosed(c domain.ClosedTrade) { f(c) }

// MultiSink fans a record out to several sinks.
type MultiSink []Sink

// TradeClosed forwards c to every sink in order.
func (ms MultiSink) TradeClosed(c domain.ClosedTrade) {
	for _, s := range ms {
		s.TradeClosed(c)
	}
}

type discard struct{}

func (discard) TradeClosed(domain.ClosedTrade) {}

// LogSink writes the trade log: INFO for non-negative profit, WARN for a
// loss.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a LogSink writing to log.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// TradeClosed logs c.
func (s *LogSink) TradeClosed(c domain.ClosedTrade) {
	level := slog.LevelInfo
	if c.Profit < 0 {
		level = slog.LevelWarn
	}
	s.log.LogAttrs(context.Background(), level, "trade closed",
		slog.Time("date", time.UnixMilli(c.ExitTime).UTC()),
		slog.Int("win", c.Wins),
		slog.Int("lose", c.Losses),
		slog.Float64("usd_balance", c.Balance),
		slog.Float64("size", c.Size),
		slog.String("side", c.Side.String()),
		slog.Float64("entry_price", c.EntryPrice),
		slog.Float64("exit_price", *c.ExitPrice),
		slog.Float64("profit", c.Profit),
		slog.Float64("fee", c.ExitFee),
	)
}

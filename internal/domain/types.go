// Package domain defines the core value types shared by the backtest engine,
// the storage layer, and the API surface.
package domain

import "time"

// Bar is one OHLC price record for a fixed interval. Timestamps are Unix
// milliseconds. A Bar is a value type and is never mutated once built.
type Bar struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// CloseAt returns the bar's close timestamp as a UTC time.
func (b Bar) CloseAt() time.Time {
	return time.UnixMilli(b.CloseTime).UTC()
}

// Side is the direction of a simulated trade.
type Side int

const (
	Long Side = iota
	Short
)

// Sides lists every side in a stable order.
var Sides = [...]Side{Long, Short}

// String returns "long" or "short".
func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Sign returns +1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Outcome records how a trade was closed.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// Trade is a single simulated position. Size is fixed at creation;
// ExitPrice stays nil until the trade closes.
type Trade struct {
	Side       Side
	EntryTime  int64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Size       float64
	EntryFee   float64
	ExitPrice  *float64
	Open       bool
}

// ClosedTrade is the historical record of a trade after it has been closed,
// together with the aggregate counters as they stood right after closure.
type ClosedTrade struct {
	Trade
	ExitTime int64
	Outcome  Outcome
	Profit   float64
	ExitFee  float64

	Wins    int
	Losses  int
	Balance float64
}

// Summary is the externally observable result of a backtest run.
type Summary struct {
	InitialCapital float64
	Balance        float64
	Wins           int
	Losses         int
	TotalFee       float64
	TotalProfit    float64
}

// Trades returns the number of closed trades.
func (s Summary) Trades() int { return s.Wins + s.Losses }

// WinRate returns wins divided by closed trades, or 0 when nothing closed.
func (s Summary) WinRate() float64 {
	if n := s.Trades(); n > 0 {
		return float64(s.Wins) / float64(n)
	}
	return 0
}

// Run identifies one journaled backtest run.
type Run struct {
	ID        string
	Symbol    string
	Interval  string
	From      time.Time
	To        time.Time
	Bars      int
	Summary   Summary
	CreatedAt time.Time
}

package report

import (
	"priceaction/internal/domain"
)

// TradeStats holds statistics derived from a closed-trade history.
type TradeStats struct {
	Longs        int
	Shorts       int
	AvgWin       float64
	AvgLoss      float64
	LargestWin   float64
	LargestLoss  float64
	MaxDrawdown  float64 // largest peak-to-trough fall of the balance, as a ratio
	ProfitFactor float64 // gross profit over gross loss, 0 when there is no loss
}

// Aggregate computes TradeStats over closed trades in closing order.
// initialCapital seeds the balance curve for the drawdown.
func Aggregate(closed []domain.ClosedTrade, initialCapital float64) TradeStats {
	var (
		st          TradeStats
		gain, loss  float64
		nWin, nLoss int
		peak        = initialCapital
	)
	for _, c := range closed {
		if c.Side == domain.Long {
			st.Longs++
		} else {
			st.Shorts++
		}

		if c.Profit >= 0 {
			gain += c.Profit
			nWin++
			st.LargestWin = max(st.LargestWin, c.Profit)
		} else {
			loss -= c.Profit
			nLoss++
			st.LargestLoss = min(st.LargestLoss, c.Profit)
		}

		peak = max(peak, c.Balance)
		if peak > 0 {
			st.MaxDrawdown = max(st.MaxDrawdown, (peak-c.Balance)/peak)
		}
	}
	if nWin > 0 {
		st.AvgWin = gain / float64(nWin)
	}
	if nLoss > 0 {
		st.AvgLoss = -loss / float64(nLoss)
	}
	if loss > 0 {
		st.ProfitFactor = gain / loss
	}
	return st
}

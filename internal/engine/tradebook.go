package engine

import (
	"errors"

	"github.com/shopspring/decimal"

	"priceaction/internal/domain"
)

// ErrSideOccupied is returned by TradeBook.Open when a trade on the same
// side is already open.
var ErrSideOccupied = errors.New("side already has an open trade")

// TradeBook holds the open trades, at most one per side, admits new trades,
// and resolves exits bar by bar. Closed trades are moved to the history and
// booked into Metrics.
type TradeBook struct {
	open    [len(domain.Sides)]*domain.Trade
	closed  []domain.ClosedTrade
	risk    *RiskManager
	metrics *Metrics
	feeRate decimal.Decimal
}

// NewTradeBook creates an empty TradeBook that books into metrics.
func NewTradeBook(risk *RiskManager, metrics *Metrics, feeRate float64) *TradeBook {
	return &TradeBook{
		risk:    risk,
		metrics: metrics,
		feeRate: decimal.NewFromFloat(feeRate),
	}
}

// Has reports whether side has an open trade.
func (b *TradeBook) Has(side domain.Side) bool {
	return b.open[side] != nil
}

// OpenTrades returns copies of the open trades, long first.
func (b *TradeBook) OpenTrades() []domain.Trade {
	var out []domain.Trade
	for _, t := range b.open {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// Closed returns the closed-trade history in closing order.
func (b *TradeBook) Closed() []domain.ClosedTrade {
	return append([]domain.ClosedTrade(nil), b.closed...)
}

// Open admits a trade on side entered at bar.Close, with the stop distance
// measured from reference. It is a no-op returning ErrSideOccupied when side
// is already held. The entry fee is added to the fee total only; the balance
// is not charged at entry.
func (b *TradeBook) Open(side domain.Side, bar domain.Bar, reference float64) (domain.Trade, error) {
	if b.Has(side) {
		return domain.Trade{}, ErrSideOccupied
	}

	entry := bar.Close
	plan, err := b.risk.Plan(side, entry, reference, b.risk.CapitalBase(b.metrics))
	if err != nil {
		return domain.Trade{}, err
	}

	fee := b.fee(entry, plan.Size)
	b.metrics.AddFee(fee)

	t := &domain.Trade{
		Side:       side,
		EntryTime:  bar.CloseTime,
		EntryPrice: entry,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		Size:       plan.Size,
		EntryFee:   fee.InexactFloat64(),
		Open:       true,
	}
	b.open[side] = t
	return *t, nil
}

// Resolve checks every open trade against bar's range and closes those whose
// stop-loss or take-profit was touched. The stop-loss is checked first so a
// bar straddling both levels closes as a loss.
func (b *TradeBook) Resolve(bar domain.Bar) []domain.ClosedTrade {
	var closed []domain.ClosedTrade
	for _, side := range domain.Sides {
		t := b.open[side]
		if t == nil {
			continue
		}
		exit, outcome, hit := exitFor(t, bar)
		if !hit {
			continue
		}
		c := b.close(t, bar, exit, outcome)
		b.open[side] = nil
		closed = append(closed, c)
	}
	return closed
}

func exitFor(t *domain.Trade, bar domain.Bar) (float64, domain.Outcome, bool) {
	if t.Side == domain.Long {
		switch {
		case bar.Low <= t.StopLoss:
			return t.StopLoss, domain.OutcomeLose, true
		case bar.High >= t.TakeProfit:
			return t.TakeProfit, domain.OutcomeWin, true
		}
		return 0, "", false
	}
	switch {
	case bar.High >= t.StopLoss:
		return t.StopLoss, domain.OutcomeLose, true
	case bar.Low <= t.TakeProfit:
		return t.TakeProfit, domain.OutcomeWin, true
	}
	return 0, "", false
}

func (b *TradeBook) close(t *domain.Trade, bar domain.Bar, exit float64, outcome domain.Outcome) domain.ClosedTrade {
	profit := decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(t.EntryPrice)).
		Mul(decimal.NewFromFloat(t.Size)).
		Mul(decimal.NewFromFloat(t.Side.Sign()))
	fee := b.fee(exit, t.Size)
	b.metrics.Realize(profit, fee, outcome)

	done := *t
	done.Open = false
	done.ExitPrice = &exit

	b.closed = append(b.closed, domain.ClosedTrade{
		Trade:    done,
		ExitTime: bar.CloseTime,
		Outcome:  outcome,
		Profit:   profit.InexactFloat64(),
		ExitFee:  fee.InexactFloat64(),
		Wins:     b.metrics.Wins(),
		Losses:   b.metrics.Losses(),
		Balance:  b.metrics.Balance().InexactFloat64(),
	})
	return b.closed[len(b.closed)-1]
}

func (b *TradeBook) fee(price, size float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size)).Mul(b.feeRate)
}

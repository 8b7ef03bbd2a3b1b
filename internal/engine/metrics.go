package engine

import (
	"github.com/shopspring/decimal"

	"priceaction/internal/domain"
)

// Metrics accumulates balance, fees, profit and win/lose counts over one
// run. Amounts are kept as decimals so that Balance always equals
// InitialCapital + TotalProfit exactly. It is append-only.
type Metrics struct {
	initialCapital decimal.Decimal
	balance        decimal.Decimal
	totalFee       decimal.Decimal
	totalProfit    decimal.Decimal
	wins           int
	losses         int
}

// Ledger is the exact view of the Metrics amounts.
type Ledger struct {
	InitialCapital decimal.Decimal
	Balance        decimal.Decimal
	TotalFee       decimal.Decimal
	TotalProfit    decimal.Decimal
}

// NewMetrics creates a Metrics whose balance starts at initialCapital.
func NewMetrics(initialCapital float64) *Metrics {
	c := decimal.NewFromFloat(initialCapital)
	return &Metrics{
		initialCapital: c,
		balance:        c,
	}
}

// AddFee adds fee to the fee total without touching the balance.
func (m *Metrics) AddFee(fee decimal.Decimal) {
	m.totalFee = m.totalFee.Add(fee)
}

// Realize books a closed trade: profit goes to balance and profit total,
// the exit fee to the fee total, and the outcome to the counters.
func (m *Metrics) Realize(profit, exitFee decimal.Decimal, outcome domain.Outcome) {
	m.balance = m.balance.Add(profit)
	m.totalProfit = m.totalProfit.Add(profit)
	m.totalFee = m.totalFee.Add(exitFee)
	if outcome == domain.OutcomeWin {
		m.wins++
	} else {
		m.losses++
	}
}

// InitialCapital returns the starting balance.
func (m *Metrics) InitialCapital() decimal.Decimal { return m.initialCapital }

// Balance returns the running balance.
func (m *Metrics) Balance() decimal.Decimal { return m.balance }

// Wins returns the number of trades closed at take-profit.
func (m *Metrics) Wins() int { return m.wins }

// Losses returns the number of trades closed at stop-loss.
func (m *Metrics) Losses() int { return m.losses }

// Ledger returns the exact amounts.
func (m *Metrics) Ledger() Ledger {
	return Ledger{
		InitialCapital: m.initialCapital,
		Balance:        m.balance,
		TotalFee:       m.totalFee,
		TotalProfit:    m.totalProfit,
	}
}

// Snapshot returns a float64 view for reporting.
func (m *Metrics) Snapshot() domain.Summary {
	return domain.Summary{
		InitialCapital: m.initialCapital.InexactFloat64(),
		Balance:        m.balance.InexactFloat64(),
		Wins:           m.wins,
		Losses:         m.losses,
		TotalFee:       m.totalFee.InexactFloat64(),
		TotalProfit:    m.totalProfit.InexactFloat64(),
	}
}

package engine

import (
	"errors"
	"math"

	"priceaction/internal/config"
	"priceaction/internal/domain"
)

var (
	// ErrZeroStopDistance is returned when the entry price equals the
	// reference extreme, which would give a zero-width stop.
	ErrZeroStopDistance = errors.New("zero stop-loss distance")
	// ErrInvalidSize is returned when the computed position size is not a
	// positive finite number.
	ErrInvalidSize = errors.New("invalid position size")
)

// Plan is the set of levels and the size of a trade about to be opened.
type Plan struct {
	StopLoss   float64
	TakeProfit float64
	Size       float64
}

// RiskManager turns an accepted signal into stop-loss and take-profit levels
// and a position size, and refuses entries that would be degenerate.
type RiskManager struct {
	setting config.Setting
}

// NewRiskManager creates a RiskManager from the run setting.
//
//   - EntryPortion: fraction of the capital base committed per entry.
//   - RewardLong / RewardShort: take-profit distance as a multiple of the
//     stop-loss distance.
//   - Sizing: whether the capital base is the running balance or the
//     initial capital.
func NewRiskManager(s config.Setting) *RiskManager {
	return &RiskManager{setting: s}
}

// CapitalBase returns the amount the next position is sized from.
func (rm *RiskManager) CapitalBase(m *Metrics) float64 {
	if rm.setting.Sizing == config.SizingInitial {
		return m.InitialCapital().InexactFloat64()
	}
	return m.Balance().InexactFloat64()
}

// Plan computes the levels and size for a trade entered at entry on side,
// with the stop distance measured from reference.
func (rm *RiskManager) Plan(side domain.Side, entry, reference, capitalBase float64) (Plan, error) {
	distance := math.Abs(entry - reference)
	if distance == 0 {
		return Plan{}, ErrZeroStopDistance
	}

	size := capitalBase * rm.setting.EntryPortion / entry
	if !(size > 0) || math.IsInf(size, 0) {
		return Plan{}, ErrInvalidSize
	}

	sign := side.Sign()
	return Plan{
		StopLoss:   entry - sign*distance,
		TakeProfit: entry + sign*rm.setting.Reward(side == domain.Long)*distance,
		Size:       size,
	}, nil
}

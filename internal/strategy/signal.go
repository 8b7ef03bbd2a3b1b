package strategy

import "priceaction/internal/domain"

// Signal is the classification of a bar by the breakout rule.
type Signal int

const (
	NoSignal Signal = iota
	LongBreakout
	ShortBreakout
)

// String returns a short label for logs.
func (s Signal) String() string {
	switch s {
	case LongBreakout:
		return "long-breakout"
	case ShortBreakout:
		return "short-breakout"
	default:
		return "none"
	}
}

// Side maps a breakout to the trade side it opens. ok is false for NoSignal.
func (s Signal) Side() (side domain.Side, ok bool) {
	switch s {
	case LongBreakout:
		return domain.Long, true
	case ShortBreakout:
		return domain.Short, true
	default:
		return domain.Long, false
	}
}

// Extremes holds the last two running-maximum and running-minimum closes.
type Extremes struct {
	PrevHigh, CurrHigh float64
	PrevLow, CurrLow   float64
}

// Rule holds the candle-body thresholds of the breakout rule.
type Rule struct {
	// LongThreshold is the minimum (close-open)/open for a long entry.
	LongThreshold float64
	// ShortThreshold is the maximum (close-open)/open for a short entry.
	ShortThreshold float64
}

// Classify decides whether bar is a long breakout, a short breakout, or
// neither. Closes are compared with exact float equality: a support or
// resistance level "holds" only if the running extreme is bit-identical.
func (r Rule) Classify(x Extremes, bar domain.Bar, hasLong, hasShort bool) Signal {
	higherHigh := x.PrevHigh < x.CurrHigh
	higherLow := x.PrevLow == x.CurrLow
	lowerLow := x.PrevLow > x.CurrLow
	lowerHigh := x.PrevHigh == x.CurrHigh
	pct := (bar.Close - bar.Open) / bar.Open

	switch {
	case higherHigh && higherLow && pct >= r.LongThreshold && !hasLong:
		return LongBreakout
	case lowerLow && lowerHigh && pct <= r.ShortThreshold && !hasShort:
		return ShortBreakout
	}
	return NoSignal
}

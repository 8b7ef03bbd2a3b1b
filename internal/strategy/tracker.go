package strategy

import (
	"math"

	"priceaction/internal/domain"
)

// Tracker keeps the last lookBack bars and, on every update, recomputes the
// running maximum and minimum of Close from the oldest held bar to the newest.
//
// The running sequences are computed before the oldest bar is evicted, so
// the last two entries compare the extreme of the lookBack bars preceding the
// newest bar against the extreme including it. After eviction the leading
// entries are dropped to keep the sequences aligned with the held bars.
type Tracker struct {
	lookBack int
	bars     []domain.Bar
	highs    []float64
	lows     []float64
}

// NewTracker creates a Tracker with the given look-back length.
func NewTracker(lookBack int) *Tracker {
	return &Tracker{
		lookBack: lookBack,
		bars:     make([]domain.Bar, 0, lookBack+1),
		highs:    make([]float64, 0, lookBack+1),
		lows:     make([]float64, 0, lookBack+1),
	}
}

// LookBack returns the configured window length.
func (t *Tracker) LookBack() int { return t.lookBack }

// Len returns the number of bars currently held.
func (t *Tracker) Len() int { return len(t.bars) }

// Update appends bar, recomputes the running extremes over the window, and
// evicts the oldest bar once more than lookBack are held.
func (t *Tracker) Update(bar domain.Bar) {
	t.bars = append(t.bars, bar)

	t.highs = t.highs[:0]
	t.lows = t.lows[:0]
	highest, lowest := math.Inf(-1), math.Inf(1)
	for _, b := range t.bars {
		highest = math.Max(highest, b.Close)
		lowest = math.Min(lowest, b.Close)
		t.highs = append(t.highs, highest)
		t.lows = append(t.lows, lowest)
	}

	if len(t.bars) > t.lookBack {
		t.bars = dropFirst(t.bars)
		t.highs = dropFirst(t.highs)
		t.lows = dropFirst(t.lows)
	}
}

// Ready reports whether lookBack bars have been seen.
func (t *Tracker) Ready() bool {
	return len(t.highs) >= t.lookBack
}

// LastTwoHighs returns the previous and current running maximum. ok is false
// until the tracker is ready.
func (t *Tracker) LastTwoHighs() (prev, curr float64, ok bool) {
	return lastTwo(t.highs, t.Ready())
}

// LastTwoLows returns the previous and current running minimum. ok is false
// until the tracker is ready.
func (t *Tracker) LastTwoLows() (prev, curr float64, ok bool) {
	return lastTwo(t.lows, t.Ready())
}

// Highs returns a copy of the running-maximum sequence.
func (t *Tracker) Highs() []float64 { return append([]float64(nil), t.highs...) }

// Lows returns a copy of the running-minimum sequence.
func (t *Tracker) Lows() []float64 { return append([]float64(nil), t.lows...) }

func lastTwo(s []float64, ready bool) (prev, curr float64, ok bool) {
	if !ready || len(s) < 2 {
		return 0, 0, false
	}
	return s[len(s)-2], s[len(s)-1], true
}

// dropFirst removes s[0] in place so the backing array never grows past
// lookBack+1 elements.
func dropFirst[T any](s []T) []T {
	copy(s, s[1:])
	return s[:len(s)-1]
}

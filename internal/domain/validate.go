package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoBars is returned when a run is given an empty bar sequence.
	ErrNoBars = errors.New("no bars")
	// ErrUnordered is returned when bar open times are not strictly increasing.
	ErrUnordered = errors.New("bars not strictly ordered by open time")
	// ErrBadPrice is returned for non-positive, non-finite or inverted prices.
	ErrBadPrice = errors.New("invalid bar price")
	// ErrBadInterval is returned by ParseInterval for unknown interval strings.
	ErrBadInterval = errors.New("invalid interval")
)

// ValidateBars checks the preconditions the engine relies on: a non-empty
// sequence, strictly increasing open times, and positive finite prices with
// High >= Low.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoBars
	}
	for i, b := range bars {
		for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if !(p > 0) || math.IsInf(p, 0) {
				return fmt.Errorf("bar %d: %w: %v", i, ErrBadPrice, p)
			}
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d: %w: high %v < low %v", i, ErrBadPrice, b.High, b.Low)
		}
		if i > 0 && b.OpenTime <= bars[i-1].OpenTime {
			return fmt.Errorf("bar %d: %w", i, ErrUnordered)
		}
	}
	return nil
}

// ParseInterval converts a kline interval such as "15m", "1h" or "1d" into a
// duration.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, s)
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadInterval, s)
	}
	return time.Duration(n) * unit, nil
}

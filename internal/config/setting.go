package config

import (
	"errors"
	"fmt"
	"math"
)

// Sizing selects the capital base used to size new trades.
type Sizing string

const (
	// SizingBalance sizes from the running balance.
	SizingBalance Sizing = "balance"
	// SizingInitial sizes from the run's fixed initial capital.
	SizingInitial Sizing = "initial"
)

// Strategy parameter defaults.
const (
	DefaultLookBack    = 20
	DefaultRewardLong  = 2.0
	DefaultRewardShort = 1.2
)

// ErrInvalidSetting wraps every Setting validation failure.
var ErrInvalidSetting = errors.New("invalid setting")

// Setting holds the numeric parameters of the breakout rule. The engine
// reads it and never mutates it.
type Setting struct {
	Strategy string `yaml:"strategy"`

	InitialCapital  float64 `yaml:"initial_capital"`
	FeeRate         float64 `yaml:"fee_rate"`
	KlinePercentage float64 `yaml:"kline_percentage"`
	EntryPortion    float64 `yaml:"entry_portion"`

	LookBack    int     `yaml:"look_back"`
	RewardLong  float64 `yaml:"reward_long"`
	RewardShort float64 `yaml:"reward_short"`

	// NegateShortThreshold compares the short candle body against
	// -KlinePercentage when true (the default) and +KlinePercentage when
	// false.
	NegateShortThreshold *bool  `yaml:"negate_short_threshold"`
	Sizing               Sizing `yaml:"sizing"`
}

// DefaultSetting returns a Setting with every optional field defaulted.
func DefaultSetting() Setting {
	var s Setting
	s.applyDefaults()
	return s
}

func (s *Setting) applyDefaults() {
	if s.Strategy == "" {
		s.Strategy = "breakout"
	}
	if s.LookBack == 0 {
		s.LookBack = DefaultLookBack
	}
	if s.RewardLong == 0 {
		s.RewardLong = DefaultRewardLong
	}
	if s.RewardShort == 0 {
		s.RewardShort = DefaultRewardShort
	}
	if s.NegateShortThreshold == nil {
		t := true
		s.NegateShortThreshold = &t
	}
	if s.Sizing == "" {
		s.Sizing = SizingBalance
	}
}

// ShortThreshold returns the candle-body threshold the short rule compares
// against with <=.
func (s Setting) ShortThreshold() float64 {
	if s.NegateShortThreshold == nil || *s.NegateShortThreshold {
		return -s.KlinePercentage
	}
	return s.KlinePercentage
}

// Reward returns the reward multiple for longs or shorts.
func (s Setting) Reward(long bool) float64 {
	if long {
		return s.RewardLong
	}
	return s.RewardShort
}

// Validate reports the first out-of-range parameter. Defaults must already
// be applied.
func (s Setting) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"initial_capital", s.InitialCapital},
		{"fee_rate", s.FeeRate},
		{"kline_percentage", s.KlinePercentage},
		{"reward_long", s.RewardLong},
		{"reward_short", s.RewardShort},
	} {
		if math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidSetting, f.name, f.v)
		}
	}
	switch {
	case !(s.InitialCapital > 0):
		return fmt.Errorf("%w: initial_capital must be > 0, got %v", ErrInvalidSetting, s.InitialCapital)
	case !(s.EntryPortion > 0 && s.EntryPortion <= 1):
		return fmt.Errorf("%w: entry_portion must be in (0, 1], got %v", ErrInvalidSetting, s.EntryPortion)
	case !(s.FeeRate >= 0):
		return fmt.Errorf("%w: fee_rate must be >= 0, got %v", ErrInvalidSetting, s.FeeRate)
	case !(s.KlinePercentage >= 0):
		return fmt.Errorf("%w: kline_percentage must be >= 0, got %v", ErrInvalidSetting, s.KlinePercentage)
	case s.LookBack < 2:
		return fmt.Errorf("%w: look_back must be >= 2, got %d", ErrInvalidSetting, s.LookBack)
	case !(s.RewardLong > 0) || !(s.RewardShort > 0):
		return fmt.Errorf("%w: reward multiples must be > 0, got %v/%v", ErrInvalidSetting, s.RewardLong, s.RewardShort)
	case s.Sizing != SizingBalance && s.Sizing != SizingInitial:
		return fmt.Errorf("%w: unknown sizing %q", ErrInvalidSetting, s.Sizing)
	}
	return nil
}

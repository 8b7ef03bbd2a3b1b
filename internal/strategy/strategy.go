// Package strategy defines the Strategy interface for entry rules, the
// rolling-extremum breakout rule itself, and a Registry for looking up
// strategy constructors by name.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"priceaction/internal/config"
	"priceaction/internal/domain"
)

// Held reports which sides currently have an open trade.
type Held struct {
	Long  bool
	Short bool
}

// Decision is what a strategy wants done with the current bar.
type Decision struct {
	Signal Signal
	// Reference is the extreme the stop-loss distance is measured from:
	// the current running low for a long, the current running high for a
	// short.
	Reference float64
}

// Strategy is the interface every entry rule implements. A Strategy holds
// run-scoped state and must not be shared between concurrent runs.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// OnBar ingests the next bar and returns the entry decision for it.
	OnBar(bar domain.Bar, held Held) Decision
}

// Compile-time interface check.
var _ Strategy = (*Breakout)(nil)

// BreakoutName is the registry name of the breakout rule.
const BreakoutName = "breakout"

// Breakout enters long when the close makes a new look-back high while the
// look-back low holds, and short on the mirror image, provided the candle
// body clears the configured threshold.
type Breakout struct {
	tracker *Tracker
	rule    Rule
}

// NewBreakout creates a Breakout strategy from the run setting.
func NewBreakout(s config.Setting) *Breakout {
	return &Breakout{
		tracker: NewTracker(s.LookBack),
		rule: Rule{
			LongThreshold:  s.KlinePercentage,
			ShortThreshold: s.ShortThreshold(),
		},
	}
}

// Name returns "breakout".
func (b *Breakout) Name() string { return BreakoutName }

// OnBar updates the tracker and classifies the bar. Until the look-back
// window is full it always returns NoSignal.
func (b *Breakout) OnBar(bar domain.Bar, held Held) Decision {
	b.tracker.Update(bar)

	prevHigh, currHigh, okHigh := b.tracker.LastTwoHighs()
	prevLow, currLow, okLow := b.tracker.LastTwoLows()
	if !okHigh || !okLow {
		return Decision{Signal: NoSignal}
	}

	x := Extremes{PrevHigh: prevHigh, CurrHigh: currHigh, PrevLow: prevLow, CurrLow: currLow}
	switch sig := b.rule.Classify(x, bar, held.Long, held.Short); sig {
	case LongBreakout:
		return Decision{Signal: sig, Reference: currLow}
	case ShortBreakout:
		return Decision{Signal: sig, Reference: currHigh}
	}
	return Decision{Signal: NoSignal}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// ErrUnknownStrategy is returned by Registry.New for unregistered names.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a fresh strategy instance for one run.
type Factory func(config.Setting) Strategy

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Builtin returns a Registry with every built-in strategy registered.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(BreakoutName, func(s config.Setting) Strategy { return NewBreakout(s) })
	return r
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds a fresh instance of the named strategy.
func (r *Registry) New(name string, s config.Setting) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return f(s), nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

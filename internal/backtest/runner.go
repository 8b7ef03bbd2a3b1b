// Package backtest ties the bar archive, the strategy registry, the engine
// and the run journal together into a single backtest job.
package backtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/engine"
	"priceaction/internal/store"
	"priceaction/internal/strategy"
)

// ErrNoData is returned when the archive holds no bars for the requested
// series and range.
var ErrNoData = errors.New("no bars stored for range")

// Job describes one backtest.
type Job struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
	Setting  config.Setting
	// Sink receives every closed trade; nil discards them.
	Sink engine.Sink
}

// Outcome is a finished, possibly journaled, backtest.
type Outcome struct {
	Run    domain.Run
	Result *engine.Result
}

// Runner executes Jobs. Runs may be nil, in which case nothing is journaled.
type Runner struct {
	Bars     store.BarStore
	Runs     store.RunStore
	Registry *strategy.Registry
	Log      *slog.Logger
}

// Run loads the bars of job, runs a fresh strategy and engine over them,
// and journals the result when a RunStore is configured.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	if _, err := domain.ParseInterval(job.Interval); err != nil {
		return nil, err
	}
	if err := job.Setting.Validate(); err != nil {
		return nil, err
	}
	registry := r.Registry
	if registry == nil {
		registry = strategy.Builtin()
	}
	strat, err := registry.New(job.Setting.Strategy, job.Setting)
	if err != nil {
		return nil, err
	}

	bars, err := r.Bars.ReadBars(ctx, job.Symbol, job.Interval, job.From, job.To)
	if err != nil {
		return nil, fmt.Errorf("reading bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s %s..%s", ErrNoData, job.Symbol, job.Interval,
			job.From.Format(time.DateTime), job.To.Format(time.DateTime))
	}

	id := uuid.NewString()
	eng, err := engine.New(job.Setting, strat, job.Sink, log.With("run_id", id))
	if err != nil {
		return nil, err
	}
	res, err := eng.Run(ctx, bars)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Run: domain.Run{
			ID:        id,
			Symbol:    job.Symbol,
			Interval:  job.Interval,
			From:      job.From,
			To:        job.To,
			Bars:      res.Bars,
			Summary:   res.Summary,
			CreatedAt: time.Now().UTC(),
		},
		Result: res,
	}

	if r.Runs != nil {
		if err := r.Runs.SaveRun(ctx, out.Run); err != nil {
			return out, fmt.Errorf("journaling run: %w", err)
		}
		if err := r.Runs.SaveTrades(ctx, id, res.Closed); err != nil {
			return out, fmt.Errorf("journaling trades: %w", err)
		}
		log.Debug("run journaled", "run_id", id, "trades", len(res.Closed))
	}
	return out, nil
}

// ApplyOverrides returns a copy of base with the fields named in overrides
// replaced. Keys are the YAML names of the setting section; unknown keys are
// rejected. The result is validated.
func ApplyOverrides(base config.Setting, overrides map[string]any) (config.Setting, error) {
	s := base
	if base.NegateShortThreshold != nil {
		v := *base.NegateShortThreshold
		s.NegateShortThreshold = &v
	}
	if len(overrides) > 0 {
		raw, err := yaml.Marshal(overrides)
		if err != nil {
			return base, fmt.Errorf("%w: %v", config.ErrInvalidSetting, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return base, fmt.Errorf("%w: %v", config.ErrInvalidSetting, err)
		}
	}
	if err := s.Validate(); err != nil {
		return base, err
	}
	return s, nil
}

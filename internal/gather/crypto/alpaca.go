// Package crypto downloads crypto bars from the Alpaca market-data API into
// a store.BarStore.
package crypto

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/gather"
	"priceaction/internal/store"
	"priceaction/internal/util"
)

var _ gather.Gatherer = (*BarGatherer)(nil)

// ErrUnsupportedInterval is returned for intervals Alpaca cannot serve.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// barClient is the subset of *marketdata.Client the gatherer uses.
type barClient interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// BarGatherer downloads bars of one interval for a list of crypto symbols.
// Symbols are fetched concurrently, bounded by maxWorkers; every request is
// rate limited and retried.
type BarGatherer struct {
	client     barClient
	store      store.BarStore
	symbols    []string
	interval   string
	period     time.Duration
	timeFrame  marketdata.TimeFrame
	start      time.Time
	limiter    *util.RateLimiter
	backoff    util.Backoff
	maxWorkers int
	now        func() time.Time
	log        *slog.Logger
}

// NewBarGatherer creates a BarGatherer from the Alpaca credentials and the
// gather section of the configuration.
func NewBarGatherer(a config.Alpaca, g config.GatherConfig, interval string, s store.BarStore, log *slog.Logger) (*BarGatherer, error) {
	opts := marketdata.ClientOpts{
		APIKey:    a.APIKey,
		APISecret: a.APISecret,
	}
	if a.DataURL != "" {
		opts.BaseURL = a.DataURL
	}
	return newBarGatherer(marketdata.NewClient(opts), g, interval, s, log)
}

func newBarGatherer(client barClient, g config.GatherConfig, interval string, s store.BarStore, log *slog.Logger) (*BarGatherer, error) {
	period, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	tf, err := TimeFrame(period)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse("2006-01-02", g.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", g.StartDate, err)
	}
	if len(g.Symbols) == 0 {
		return nil, errors.New("no symbols configured")
	}
	if log == nil {
		log = slog.Default()
	}

	return &BarGatherer{
		client:     client,
		store:      s,
		symbols:    g.Symbols,
		interval:   interval,
		period:     period,
		timeFrame:  tf,
		start:      start,
		limiter:    util.NewRateLimiter(cmp.Or(max(g.RateLimitPerMin, 0), 200), max(g.MaxWorkers, 1)),
		backoff:    util.Backoff{Attempts: max(g.MaxAttempts, 1), Base: time.Second, Max: 30 * time.Second},
		maxWorkers: max(g.MaxWorkers, 1),
		now:        time.Now,
		log:        log.With("gatherer", "crypto-bars", "interval", interval),
	}, nil
}

// TimeFrame maps a bar duration onto an Alpaca time frame: whole days
// (1d only), whole hours below a day, or whole minutes below an hour.
func TimeFrame(d time.Duration) (marketdata.TimeFrame, error) {
	switch {
	case d == 24*time.Hour:
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	case d < 24*time.Hour && d >= time.Hour && d%time.Hour == 0:
		return marketdata.NewTimeFrame(int(d/time.Hour), marketdata.Hour), nil
	case d < time.Hour && d >= time.Minute && d%time.Minute == 0:
		return marketdata.NewTimeFrame(int(d/time.Minute), marketdata.Min), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedInterval, d)
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "crypto-bars" }

// Run downloads every configured symbol from the start date up to now, one
// calendar year per request, and writes each year to the store as soon as
// it arrives. Failed symbols are logged and reported together at the end.
func (g *BarGatherer) Run(ctx context.Context) error {
	span := gather.DateRange{Start: g.start, End: g.now().UTC()}
	g.log.Info("starting", "symbols", len(g.symbols), "from", span.Start, "to", span.End)

	var (
		failed   atomic.Int64
		total    atomic.Int64
		runStart = time.Now()
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxWorkers)
	for _, sym := range g.symbols {
		sym := strings.ToUpper(strings.TrimSpace(sym))
		eg.Go(func() error {
			n, err := g.gatherSymbol(gctx, sym, span)
			total.Add(int64(n))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				g.log.Error("symbol failed", "symbol", sym, "bars", n, "err", err)
				return nil
			}
			g.log.Info("symbol done", "symbol", sym, "bars", n)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	g.log.Info("complete",
		"bars", total.Load(),
		"failed", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d symbols failed", n, len(g.symbols))
	}
	return nil
}

func (g *BarGatherer) gatherSymbol(ctx context.Context, symbol string, span gather.DateRange) (int, error) {
	written := 0
	for _, r := range span.Years() {
		bars, err := g.fetch(ctx, symbol, r)
		if err != nil {
			return written, fmt.Errorf("fetching %s %d: %w", symbol, r.Start.Year(), err)
		}
		if len(bars) == 0 {
			continue
		}
		if err := g.store.WriteBars(ctx, symbol, g.interval, bars); err != nil {
			return written, fmt.Errorf("writing %s %d: %w", symbol, r.Start.Year(), err)
		}
		written += len(bars)
	}
	return written, nil
}

func (g *BarGatherer) fetch(ctx context.Context, symbol string, r gather.DateRange) ([]domain.Bar, error) {
	var raw []marketdata.CryptoBar
	err := util.Retry(ctx, g.backoff, func(attempt int) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = g.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: g.timeFrame,
			Start:     r.Start,
			End:       r.End,
		})
		if err != nil {
			g.log.Warn("bar request failed", "symbol", symbol, "year", r.Start.Year(), "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return toBars(raw, g.period), nil
}

// toBars converts Alpaca bars to domain bars. The bar timestamp is the open
// time; the close time is the last millisecond of the interval. Bars that do
// not advance the open time are dropped.
func toBars(raw []marketdata.CryptoBar, period time.Duration) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		open := ab.Timestamp.UnixMilli()
		if n := len(bars); n > 0 && open <= bars[n-1].OpenTime {
			continue
		}
		bars = append(bars, domain.Bar{
			OpenTime:  open,
			CloseTime: open + period.Milliseconds() - 1,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
		})
	}
	return bars
}

package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/strategy"
)

func newEngine(t *testing.T, s config.Setting, sink Sink) *Engine {
	t.Helper()
	e, err := New(s, strategy.NewBreakout(s), sink, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return e
}

func flat(n int, price float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = bar(i, price, price, price, price)
	}
	return bars
}

func randomWalk(seed int64, n int) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		close := open * (1 + (rng.Float64()-0.5)*0.04)
		high := math.Max(open, close) * (1 + rng.Float64()*0.01)
		low := math.Min(open, close) * (1 - rng.Float64()*0.01)
		bars[i] = bar(i, open, high, low, close)
		price = close
	}
	return bars
}

func TestNewRejectsInvalidSetting(t *testing.T) {
	s := testSetting(20)
	s.InitialCapital = 0
	if _, err := New(s, strategy.NewBreakout(s), nil, nil); !errors.Is(err, config.ErrInvalidSetting) {
		t.Fatalf("New = %v, want ErrInvalidSetting", err)
	}

	// Infinite amounts cannot be represented in the decimal ledger.
	for _, mutate := range []func(*config.Setting){
		func(s *config.Setting) { s.InitialCapital = math.Inf(1) },
		func(s *config.Setting) { s.FeeRate = math.Inf(1) },
	} {
		s := testSetting(20)
		mutate(&s)
		if _, err := New(s, strategy.NewBreakout(s), nil, nil); !errors.Is(err, config.ErrInvalidSetting) {
			t.Errorf("New(%+v) = %v, want ErrInvalidSetting", s, err)
		}
	}
}

func TestRunRejectsInvalidBars(t *testing.T) {
	e := newEngine(t, testSetting(20), nil)
	if _, err := e.Run(context.Background(), nil); !errors.Is(err, domain.ErrNoBars) {
		t.Errorf("Run(nil) = %v, want ErrNoBars", err)
	}

	e = newEngine(t, testSetting(20), nil)
	bars := flat(3, 100)
	bars[2].OpenTime = bars[1].OpenTime
	if _, err := e.Run(context.Background(), bars); !errors.Is(err, domain.ErrUnordered) {
		t.Errorf("Run(unordered) = %v, want ErrUnordered", err)
	}
}

func TestRunTwiceFails(t *testing.T) {
	e := newEngine(t, testSetting(20), nil)
	if _, err := e.Run(context.Background(), flat(5, 100)); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := e.Run(context.Background(), flat(5, 100)); !errors.Is(err, ErrEngineUsed) {
		t.Errorf("second Run = %v, want ErrEngineUsed", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, testSetting(20), nil)
	if _, err := e.Run(ctx, flat(5, 100)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRunWarmupOpensNothing(t *testing.T) {
	e := newEngine(t, testSetting(20), nil)
	// 19 strongly rising bars: every one would be a breakout with a full window.
	bars := make([]domain.Bar, 19)
	for i := range bars {
		p := 100 * math.Pow(1.05, float64(i))
		bars[i] = bar(i, p, p*1.05, p, p*1.05)
	}
	res, err := e.Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Open) != 0 || len(res.Closed) != 0 {
		t.Errorf("trades during warm-up: open %d, closed %d", len(res.Open), len(res.Closed))
	}
}

// Flat warm-up, a long breakout, then a bar touching the stop-loss.
func TestRunLongStoppedOut(t *testing.T) {
	s := testSetting(config.DefaultLookBack)
	var events []domain.ClosedTrade
	e := newEngine(t, s, SinkFunc(func(c domain.ClosedTrade) { events = append(events, c) }))

	bars := flat(20, 100)
	bars = append(bars,
		bar(20, 100, 110, 100, 110), // breakout: entry 110, SL 100, TP 130
		bar(21, 110, 110, 100, 101), // low touches SL
	)

	// Stop after the breakout bar to inspect the open trade.
	for _, b := range bars[:21] {
		e.Step(b)
	}
	open := e.Result().Open
	if len(open) != 1 || open[0].Side != domain.Long {
		t.Fatalf("open trades after breakout = %+v, want one long", open)
	}
	capital, portion, entry := s.InitialCapital, s.EntryPortion, 110.0
	wantSize := capital * portion / entry
	if open[0].Size != wantSize {
		t.Errorf("Size = %v, want %v", open[0].Size, wantSize)
	}
	if open[0].StopLoss != 100 || open[0].TakeProfit != 130 {
		t.Errorf("levels = %v / %v, want 100 / 130", open[0].StopLoss, open[0].TakeProfit)
	}

	e.Step(bars[21])
	res := e.Result()

	if len(res.Open) != 0 {
		t.Errorf("open trades after stop = %d, want 0", len(res.Open))
	}
	if res.Summary.Wins != 0 || res.Summary.Losses != 1 {
		t.Errorf("wins/losses = %d/%d, want 0/1", res.Summary.Wins, res.Summary.Losses)
	}

	loss := decimal.NewFromFloat(100).Sub(decimal.NewFromFloat(110)).Mul(decimal.NewFromFloat(wantSize))
	if !res.Ledger.Balance.Equal(decimal.NewFromFloat(s.InitialCapital).Add(loss)) {
		t.Errorf("Balance = %v, want %v", res.Ledger.Balance, decimal.NewFromFloat(s.InitialCapital).Add(loss))
	}
	if got, want := res.Summary.Balance, s.InitialCapital-10*wantSize; math.Abs(got-want) > 1e-9 {
		t.Errorf("Summary.Balance = %v, want ~%v", got, want)
	}

	if len(events) != 1 {
		t.Fatalf("sink received %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Outcome != domain.OutcomeLose || *ev.ExitPrice != 100 || ev.ExitTime != bars[21].CloseTime {
		t.Errorf("closure event = %+v", ev)
	}
	if ev.Losses != 1 || ev.Balance != res.Summary.Balance {
		t.Errorf("closure snapshot = losses %d, balance %v", ev.Losses, ev.Balance)
	}
}

// A long breakout followed, after the window slides, by a short breakout.
// The long's stop is never reached, so both sides end up open.
func TestRunLongAndShortConcurrently(t *testing.T) {
	e := newEngine(t, testSetting(3), nil)

	bars := append(flat(3, 100),
		bar(3, 100, 110, 100, 110), // long: SL 100, TP 130
		bar(4, 110, 110, 110, 110),
		bar(5, 110, 110, 110, 110),
		bar(6, 110, 110, 105, 105), // short: SL 110, TP 99
	)
	res, err := e.Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Open) != 2 {
		t.Fatalf("open trades = %+v, want 2", res.Open)
	}
	long, short := res.Open[0], res.Open[1]
	if long.Side != domain.Long || short.Side != domain.Short {
		t.Fatalf("sides = %v/%v, want long/short", long.Side, short.Side)
	}
	if short.EntryPrice != 105 || short.StopLoss != 110 {
		t.Errorf("short entry/SL = %v/%v, want 105/110", short.EntryPrice, short.StopLoss)
	}
	if len(res.Closed) != 0 {
		t.Errorf("closed = %d, want 0", len(res.Closed))
	}
}

func TestRunEntryBarDoesNotExitItself(t *testing.T) {
	e := newEngine(t, testSetting(3), nil)
	// The breakout bar's low equals the stop-loss level it creates.
	bars := append(flat(3, 100), bar(3, 100, 110, 100, 110))
	res, err := e.Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Open) != 1 || len(res.Closed) != 0 {
		t.Errorf("open %d / closed %d, want 1 / 0", len(res.Open), len(res.Closed))
	}
}

func TestRunConservationAndDeterminism(t *testing.T) {
	s := testSetting(20)
	s.KlinePercentage = 0.001
	bars := randomWalk(7, 3000)

	first, err := newEngine(t, s, nil).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := newEngine(t, s, nil).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.Summary.Trades() == 0 {
		t.Fatal("random walk produced no closed trades; scenario too weak")
	}

	for _, r := range []*Result{first, second} {
		l := r.Ledger
		if !l.Balance.Equal(l.InitialCapital.Add(l.TotalProfit)) {
			t.Errorf("Balance %v != InitialCapital %v + TotalProfit %v", l.Balance, l.InitialCapital, l.TotalProfit)
		}
	}

	if first.Summary != second.Summary {
		t.Errorf("summaries differ:\n  %+v\n  %+v", first.Summary, second.Summary)
	}
	if !first.Ledger.Balance.Equal(second.Ledger.Balance) || !first.Ledger.TotalFee.Equal(second.Ledger.TotalFee) {
		t.Error("ledgers differ between identical runs")
	}
	if len(first.Closed) != len(second.Closed) {
		t.Fatalf("closed counts differ: %d vs %d", len(first.Closed), len(second.Closed))
	}
	for i := range first.Closed {
		a, b := first.Closed[i], second.Closed[i]
		if *a.ExitPrice != *b.ExitPrice || a.Profit != b.Profit || a.Size != b.Size || a.ExitTime != b.ExitTime {
			t.Fatalf("closed trade %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestRunAtMostOneTradePerSide(t *testing.T) {
	s := testSetting(10)
	s.KlinePercentage = 0
	e := newEngine(t, s, nil)
	for _, b := range randomWalk(11, 2000) {
		e.Step(b)
		var longs, shorts int
		for _, tr := range e.Result().Open {
			if tr.Side == domain.Long {
				longs++
			} else {
				shorts++
			}
		}
		if longs > 1 || shorts > 1 {
			t.Fatalf("bar %d: %d longs / %d shorts open", b.OpenTime, longs, shorts)
		}
	}
}

func TestResultProfitFactor(t *testing.T) {
	r := &Result{Closed: []domain.ClosedTrade{{Profit: 30}, {Profit: -10}, {Profit: -5}}}
	if got := r.ProfitFactor(); got != 2 {
		t.Errorf("ProfitFactor() = %v, want 2", got)
	}
	if got := (&Result{Closed: []domain.ClosedTrade{{Profit: 1}}}).ProfitFactor(); got != 0 {
		t.Errorf("ProfitFactor() without losses = %v, want 0", got)
	}
}

package crypto

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/gather"
)

type fakeClient struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int // symbol -> remaining failures
	reqs     []marketdata.GetCryptoBarsRequest
}

func (f *fakeClient) GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[symbol]++
	f.reqs = append(f.reqs, req)
	if f.failures[symbol] > 0 {
		f.failures[symbol]--
		return nil, errors.New("503 service unavailable")
	}
	// One bar at the start of the range, one an hour later.
	return []marketdata.CryptoBar{
		{Timestamp: req.Start, Open: 10, High: 12, Low: 9, Close: 11},
		{Timestamp: req.Start.Add(time.Hour), Open: 11, High: 13, Low: 10, Close: 12},
	}, nil
}

type memStore struct {
	mu   sync.Mutex
	bars map[string][]domain.Bar
}

func (m *memStore) WriteBars(_ context.Context, symbol, interval string, bars []domain.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bars == nil {
		m.bars = make(map[string][]domain.Bar)
	}
	k := symbol + "|" + interval
	m.bars[k] = append(m.bars[k], bars...)
	return nil
}

func (m *memStore) ReadBars(context.Context, string, string, time.Time, time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (m *memStore) ListSymbols(context.Context) ([]string, error) { return nil, nil }

func newTestGatherer(t *testing.T, client barClient, s *memStore, symbols ...string) *BarGatherer {
	t.Helper()
	g, err := newBarGatherer(client, config.GatherConfig{
		Symbols:         symbols,
		StartDate:       "2023-06-01",
		RateLimitPerMin: 60000,
		MaxAttempts:     3,
		MaxWorkers:      2,
	}, "1h", s, nil)
	if err != nil {
		t.Fatalf("newBarGatherer: %v", err)
	}
	g.backoff.Base = 0
	g.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestBarGathererRun(t *testing.T) {
	client := &fakeClient{failures: map[string]int{"ETH/USD": 2}}
	s := &memStore{}
	g := newTestGatherer(t, client, s, "btc/usd", "ETH/USD")

	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Two calendar years per symbol; ETH needed two retries on the first.
	if client.calls["BTC/USD"] != 2 || client.calls["ETH/USD"] != 4 {
		t.Errorf("calls = %v, want BTC/USD:2 ETH/USD:4", client.calls)
	}
	for _, req := range client.reqs {
		if req.TimeFrame != marketdata.NewTimeFrame(1, marketdata.Hour) {
			t.Errorf("TimeFrame = %v, want 1Hour", req.TimeFrame)
		}
	}

	bars := s.bars["BTC/USD|1h"]
	if len(bars) != 4 {
		t.Fatalf("stored %d BTC bars, want 4", len(bars))
	}
	first := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if bars[0].OpenTime != first || bars[0].CloseTime != first+time.Hour.Milliseconds()-1 {
		t.Errorf("first bar times = %d/%d", bars[0].OpenTime, bars[0].CloseTime)
	}
	if bars[2].OpenTime != time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("second year starts at %d", bars[2].OpenTime)
	}
}

func TestBarGathererReportsFailedSymbols(t *testing.T) {
	client := &fakeClient{failures: map[string]int{"SOL/USD": 100}}
	g := newTestGatherer(t, client, &memStore{}, "BTC/USD", "SOL/USD")

	err := g.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with a permanently failing symbol")
	}
	if client.calls["SOL/USD"] != 3 {
		t.Errorf("SOL/USD calls = %d, want 3 attempts", client.calls["SOL/USD"])
	}
}

func TestTimeFrame(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want marketdata.TimeFrame
		ok   bool
	}{
		{15 * time.Minute, marketdata.NewTimeFrame(15, marketdata.Min), true},
		{4 * time.Hour, marketdata.NewTimeFrame(4, marketdata.Hour), true},
		{24 * time.Hour, marketdata.NewTimeFrame(1, marketdata.Day), true},
		{48 * time.Hour, marketdata.TimeFrame{}, false},
		{90 * time.Minute, marketdata.TimeFrame{}, false},
		{30 * time.Second, marketdata.TimeFrame{}, false},
	}
	for _, tc := range cases {
		got, err := TimeFrame(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("TimeFrame(%s) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("TimeFrame(%s) = %v, want %v", tc.in, got, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrUnsupportedInterval) {
			t.Errorf("TimeFrame(%s) err = %v, want ErrUnsupportedInterval", tc.in, err)
		}
	}
}

func TestToBarsDropsRepeats(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := []marketdata.CryptoBar{
		{Timestamp: t0, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: t0, Open: 2, High: 2, Low: 2, Close: 2},
		{Timestamp: t0.Add(15 * time.Minute), Open: 3, High: 3, Low: 3, Close: 3},
	}
	bars := toBars(raw, 15*time.Minute)
	if len(bars) != 2 || bars[0].Close != 1 || bars[1].Close != 3 {
		t.Errorf("toBars = %+v", bars)
	}
	if err := domain.ValidateBars(bars); err != nil {
		t.Errorf("converted bars invalid: %v", err)
	}
}

func TestDateRangeYears(t *testing.T) {
	r := gather.DateRange{
		Start: time.Date(2022, 11, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	ys := r.Years()
	if len(ys) != 3 {
		t.Fatalf("Years() = %d ranges, want 3", len(ys))
	}
	if !ys[0].Start.Equal(r.Start) || ys[0].End.Year() != 2023 || !ys[2].End.Equal(r.End) {
		t.Errorf("Years() = %+v", ys)
	}
}

func TestNewBarGathererErrors(t *testing.T) {
	base := config.GatherConfig{Symbols: []string{"BTC/USD"}, StartDate: "2024-01-01"}
	if _, err := newBarGatherer(&fakeClient{}, base, "7s", &memStore{}, nil); err == nil {
		t.Error("bad interval accepted")
	}
	bad := base
	bad.StartDate = "yesterday"
	if _, err := newBarGatherer(&fakeClient{}, bad, "1h", &memStore{}, nil); err == nil {
		t.Error("bad start date accepted")
	}
	none := base
	none.Symbols = nil
	if _, err := newBarGatherer(&fakeClient{}, none, "1h", &memStore{}, nil); err == nil {
		t.Error("empty symbol list accepted")
	}
}

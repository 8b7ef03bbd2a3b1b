package priceaction

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "priceaction.v1.BacktestService"

// RunMethod is the full method name of the unary Run call.
const RunMethod = "/" + ServiceName + "/Run"

// RunRequest asks the server to backtest one bar series. Zero fields fall
// back to the server's configuration. Setting holds overrides keyed by the
// YAML names of the setting section, e.g. "fee_rate" or "look_back".
type RunRequest struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
	Strategy string
	Setting  map[string]any
}

// Struct encodes r for the wire. Times are RFC 3339 strings.
func (r RunRequest) Struct() (*structpb.Struct, error) {
	m := map[string]any{}
	putString(m, "symbol", r.Symbol)
	putString(m, "interval", r.Interval)
	putString(m, "strategy", r.Strategy)
	if !r.From.IsZero() {
		m["from"] = r.From.UTC().Format(time.RFC3339)
	}
	if !r.To.IsZero() {
		m["to"] = r.To.UTC().Format(time.RFC3339)
	}
	if len(r.Setting) > 0 {
		m["setting"] = r.Setting
	}
	return structpb.NewStruct(m)
}

// ParseRunRequest decodes a request struct.
func ParseRunRequest(s *structpb.Struct) (RunRequest, error) {
	var r RunRequest
	f := s.GetFields()
	r.Symbol = f["symbol"].GetStringValue()
	r.Interval = f["interval"].GetStringValue()
	r.Strategy = f["strategy"].GetStringValue()

	var err error
	if r.From, err = parseTime(f, "from"); err != nil {
		return r, err
	}
	if r.To, err = parseTime(f, "to"); err != nil {
		return r, err
	}
	if v, ok := f["setting"]; ok {
		st := v.GetStructValue()
		if st == nil {
			return r, fmt.Errorf("setting: want an object")
		}
		r.Setting = st.AsMap()
	}
	return r, nil
}

// RunResult is the summary of a finished server-side run.
type RunResult struct {
	RunID          string
	Symbol         string
	Interval       string
	Strategy       string
	Bars           int
	InitialCapital float64
	Balance        float64
	Wins           int
	Losses         int
	TotalFee       float64
	TotalProfit    float64
	WinRate        float64
	ProfitFactor   float64
	OpenTrades     int
}

// Struct encodes r for the wire.
func (r RunResult) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"run_id":          r.RunID,
		"symbol":          r.Symbol,
		"interval":        r.Interval,
		"strategy":        r.Strategy,
		"bars":            r.Bars,
		"initial_capital": r.InitialCapital,
		"balance":         r.Balance,
		"wins":            r.Wins,
		"losses":          r.Losses,
		"total_fee":       r.TotalFee,
		"total_profit":    r.TotalProfit,
		"win_rate":        r.WinRate,
		"profit_factor":   r.ProfitFactor,
		"open_trades":     r.OpenTrades,
	})
}

// ParseRunResult decodes a response struct.
func ParseRunResult(s *structpb.Struct) RunResult {
	f := s.GetFields()
	num := func(k string) float64 { return f[k].GetNumberValue() }
	return RunResult{
		RunID:          f["run_id"].GetStringValue(),
		Symbol:         f["symbol"].GetStringValue(),
		Interval:       f["interval"].GetStringValue(),
		Strategy:       f["strategy"].GetStringValue(),
		Bars:           int(num("bars")),
		InitialCapital: num("initial_capital"),
		Balance:        num("balance"),
		Wins:           int(num("wins")),
		Losses:         int(num("losses")),
		TotalFee:       num("total_fee"),
		TotalProfit:    num("total_profit"),
		WinRate:        num("win_rate"),
		ProfitFactor:   num("profit_factor"),
		OpenTrades:     int(num("open_trades")),
	}
}

func putString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func parseTime(f map[string]*structpb.Value, k string) (time.Time, error) {
	v, ok := f[k]
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v.GetStringValue())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", k, err)
	}
	return t, nil
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"priceaction/internal/backtest"
	"priceaction/internal/config"
	"priceaction/internal/domain"
	"priceaction/internal/strategy"
	"priceaction/pkg/priceaction"
)

// BacktestServer is the server API of the BacktestService.
type BacktestServer interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// BacktestServiceDesc describes the BacktestService for grpc.Server. The
// messages are google.protobuf.Struct values so no generated code is needed.
var BacktestServiceDesc = grpc.ServiceDesc{
	ServiceName: priceaction.ServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "priceaction/v1/backtest.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: priceaction.RunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BacktestService runs backtests on request against the bar archive.
type BacktestService struct {
	runner   *backtest.Runner
	defaults config.Setting
	data     config.Data
	log      *slog.Logger
}

var _ BacktestServer = (*BacktestService)(nil)

// NewBacktestService creates a BacktestService. Request fields that are left
// empty fall back to the data and setting sections of cfg.
func NewBacktestService(runner *backtest.Runner, cfg *config.Config, log *slog.Logger) *BacktestService {
	return &BacktestService{
		runner:   runner,
		defaults: cfg.Setting,
		data:     cfg.Data,
		log:      log,
	}
}

// Run decodes a RunRequest, executes it, and encodes the RunResult.
func (s *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := priceaction.ParseRunRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	job, err := s.job(req)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := s.runner.Run(ctx, job)
	if err != nil {
		return nil, toStatus(err)
	}

	res := out.Result
	return priceaction.RunResult{
		RunID:          out.Run.ID,
		Symbol:         out.Run.Symbol,
		Interval:       out.Run.Interval,
		Strategy:       job.Setting.Strategy,
		Bars:           res.Bars,
		InitialCapital: res.Summary.InitialCapital,
		Balance:        res.Summary.Balance,
		Wins:           res.Summary.Wins,
		Losses:         res.Summary.Losses,
		TotalFee:       res.Summary.TotalFee,
		TotalProfit:    res.Summary.TotalProfit,
		WinRate:        res.Summary.WinRate(),
		ProfitFactor:   res.ProfitFactor(),
		OpenTrades:     len(res.Open),
	}.Struct()
}

func (s *BacktestService) job(req priceaction.RunRequest) (backtest.Job, error) {
	job := backtest.Job{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		From:     req.From,
		To:       req.To,
	}
	if job.Symbol == "" {
		job.Symbol = s.data.Symbol
	}
	if job.Interval == "" {
		job.Interval = s.data.Interval
	}
	if job.From.IsZero() || job.To.IsZero() {
		from, to, err := s.data.Range()
		if err != nil {
			return job, status.Errorf(codes.InvalidArgument, "no range in request or config: %v", err)
		}
		if job.From.IsZero() {
			job.From = from
		}
		if job.To.IsZero() {
			job.To = to
		}
	}
	if job.Symbol == "" {
		return job, status.Error(codes.InvalidArgument, "symbol is required")
	}
	if !job.To.After(job.From) {
		return job, status.Error(codes.InvalidArgument, "to must be after from")
	}

	setting, err := backtest.ApplyOverrides(s.defaults, req.Setting)
	if err != nil {
		return job, err
	}
	if req.Strategy != "" {
		setting.Strategy = req.Strategy
	}
	job.Setting = setting
	return job, nil
}

// toStatus maps run errors onto gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, domain.ErrBadInterval):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, backtest.ErrNoData):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrNoBars),
		errors.Is(err, domain.ErrUnordered),
		errors.Is(err, domain.ErrBadPrice):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// logUnary logs every unary call with its status code and duration.
func logUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "rpc",
			"method", info.FullMethod,
			"code", code.String(),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"err", err,
		)
		return resp, err
	}
}

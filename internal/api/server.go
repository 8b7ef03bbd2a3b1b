// Package api exposes the backtest engine over gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"priceaction/pkg/priceaction"
)

// shutdownTimeout bounds the graceful stop before in-flight calls are cut.
const shutdownTimeout = 10 * time.Second

// Server hosts the BacktestService and the standard gRPC health service.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string, svc BacktestServer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(log)))
	gs.RegisterService(&BacktestServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(priceaction.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{addr: addr, grpc: gs, health: hs, log: log}
}

// Serve accepts connections on lis until the server is stopped.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe starts the gRPC listener and blocks until the context is
// cancelled or a fatal error occurs, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(sctx)
	})
	return g.Wait()
}

// Shutdown stops accepting calls and waits for in-flight ones to finish. If
// ctx expires first the remaining calls are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc stopped")
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
		s.log.Warn("grpc stop forced", "err", ctx.Err())
		return ctx.Err()
	}
}

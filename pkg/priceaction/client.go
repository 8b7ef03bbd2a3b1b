// Package priceaction is the Go client for the priceaction backtest server.
package priceaction

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the BacktestService over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client targeting addr. Without options it uses
// insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run executes a backtest on the server and returns its summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	in, err := req.Struct()
	if err != nil {
		return RunResult{}, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, RunMethod, in, out); err != nil {
		return RunResult{}, err
	}
	return ParseRunResult(out), nil
}

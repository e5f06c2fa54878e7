// Package client opens the channel to the backend and wraps it in a typed client that
// request handlers share.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/regfront/regfront/impl/backend"
	"github.com/regfront/regfront/impl/metrics"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChannelError is a failed call through the backend channel. It only affects the call
// that got it.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("backend %s failed: %s", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Client is the handler-facing client of the backend. One is created per process and it is
// safe for concurrent use by any number of request handlers.
type Client struct {
	target string
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Connect creates the channel to the backend at host:port. The backend is not contacted
// here: the connection is established on first use, so a backend that is still starting
// (or not running at all) shows up as a ChannelError on individual calls. There is no
// retry at this layer.
func Connect(host string, port uint16) (*Client, error) {
	target := net.JoinHostPort(host, strconv.Itoa(int(port)))
	log.Debugf("connecting to backend: %s", target)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("unable to create backend channel for %s: %w", target, err)
	}
	return &Client{
		target: target,
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Target returns the backend address the channel was opened to
func (c *Client) Target() string {
	return c.target
}

// Ping asks the backend whether it is serving
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: backend.ServiceName})
	if err != nil {
		metrics.IncChannelErrors()
		return &ChannelError{Op: "health check", Err: err}
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		metrics.IncChannelErrors()
		return &ChannelError{Op: "health check", Err: fmt.Errorf("backend status is %s", resp.Status)}
	}
	return nil
}

// Close closes the channel
func (c *Client) Close() error {
	return c.conn.Close()
}

// Package clients caches one gRPC client per worker address.
package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"structview/agent-shell/pkg/agentservice"
)

var ErrClosed = errors.New("client registry closed")

// Client is a connection to one worker address.
type Client struct {
	agentservice.Client
	Address string
	conn    *grpc.ClientConn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Registry hands out clients keyed by the exact address string. Entries are
// never evicted; Close tears all of them down.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.With("component", "clients"),
		clients: make(map[string]*Client),
	}
}

// Get returns the cached client for addr or builds one. Building does not
// dial; the connection is established on the first call.
func (r *Registry) Get(addr string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.clients[addr]; ok {
		return c, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(callLogger(r.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create client for worker at %s: %w", addr, err)
	}

	c := &Client{
		Client:  agentservice.NewClient(conn),
		Address: addr,
		conn:    conn,
	}
	r.clients[addr] = c
	r.logger.Info("Created worker client", "address", addr)
	return c, nil
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close closes every cached client. Later calls to Get fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for addr, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client %s: %w", addr, err))
		}
		delete(r.clients, addr)
	}
	return errors.Join(errs...)
}

func callLogger(logger *slog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logger.Debug("Worker call",
			"method", method,
			"target", cc.Target(),
			"requestId", agentservice.OutgoingRequestID(ctx),
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
}

// Package bridge forwards typed requests to the worker once it is ready.
// Callers may invoke it before readiness; each call waits on the gate, then
// issues the RPC with its own deadline and normalises any failure into an
// *Error.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"structview/agent-shell/pkg/agentservice"
	"structview/agent-shell/services/shell/internal/clients"
	"structview/agent-shell/services/shell/internal/readiness"
)

const (
	MethodPing                = "ping"
	MethodExtractFeatures     = "extract"
	MethodSaveExtractedRecord = "saveRecord"
	MethodExtractionHistory   = "history"
)

const DefaultPingTimeout = 3 * time.Second

// Recorder receives one observation per call. outcome is "ok" or a Kind.
type Recorder interface {
	RecordCall(method, outcome string, d time.Duration)
}

type Options struct {
	PingTimeout time.Duration
	// ExtractTimeout of zero leaves extraction without a deadline.
	ExtractTimeout time.Duration
	Recorder       Recorder
}

type Bridge struct {
	gate     *readiness.Gate
	registry *clients.Registry
	opts     Options
	logger   *slog.Logger
}

func New(gate *readiness.Gate, registry *clients.Registry, opts Options, logger *slog.Logger) *Bridge {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	if opts.ExtractTimeout < 0 {
		opts.ExtractTimeout = 0
	}
	return &Bridge{
		gate:     gate,
		registry: registry,
		opts:     opts,
		logger:   logger.With("component", "bridge"),
	}
}

// Ping sends message to the worker and returns its reply.
func (b *Bridge) Ping(ctx context.Context, message string) (string, error) {
	return call(ctx, b, MethodPing, b.opts.PingTimeout, func(ctx context.Context, c *clients.Client) (string, error) {
		resp, err := c.Ping(ctx, &agentservice.PingRequest{Message: message})
		if err != nil {
			return "", err
		}
		return resp.Reply, nil
	})
}

// ExtractFeatures runs an extraction. A failure the worker reports in the
// response's ErrorMessage is returned as data with a nil error.
func (b *Bridge) ExtractFeatures(ctx context.Context, req agentservice.FeatureExtractRequest) (agentservice.FeatureExtractResponse, error) {
	return call(ctx, b, MethodExtractFeatures, b.opts.ExtractTimeout, func(ctx context.Context, c *clients.Client) (agentservice.FeatureExtractResponse, error) {
		resp, err := c.ExtractFeatures(ctx, &req)
		if err != nil {
			return agentservice.FeatureExtractResponse{}, err
		}
		return *resp, nil
	})
}

func (b *Bridge) SaveExtractedRecord(ctx context.Context, rec agentservice.ExtractedRecord) error {
	_, err := call(ctx, b, MethodSaveExtractedRecord, b.opts.PingTimeout, func(ctx context.Context, c *clients.Client) (struct{}, error) {
		return struct{}{}, c.SaveExtractedRecord(ctx, &rec)
	})
	return err
}

// ExtractionHistory returns the records the worker has saved, oldest first.
func (b *Bridge) ExtractionHistory(ctx context.Context) ([]agentservice.ExtractedRecord, error) {
	return call(ctx, b, MethodExtractionHistory, b.opts.PingTimeout, func(ctx context.Context, c *clients.Client) ([]agentservice.ExtractedRecord, error) {
		resp, err := c.GetExtractionHistory(ctx)
		if err != nil {
			return nil, err
		}
		return resp.Records, nil
	})
}

func call[T any](ctx context.Context, b *Bridge, method string, timeout time.Duration, rpc func(context.Context, *clients.Client) (T, error)) (T, error) {
	start := time.Now()
	out, err := invoke(ctx, b, method, timeout, rpc)
	if b.opts.Recorder != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		b.opts.Recorder.RecordCall(method, outcome, time.Since(start))
	}
	return out, err
}

func invoke[T any](ctx context.Context, b *Bridge, method string, timeout time.Duration, rpc func(context.Context, *clients.Client) (T, error)) (T, error) {
	var zero T

	c, err := b.client(ctx, method)
	if err != nil {
		return zero, err
	}

	rpcCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		rpcCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := rpc(rpcCtx, c)
	if err != nil {
		return zero, b.fail(ctx, &Error{Kind: classify(ctx, err), Method: method, Err: err})
	}
	return out, nil
}

// client waits for readiness and returns the client for the worker address.
func (b *Bridge) client(ctx context.Context, method string) (*clients.Client, error) {
	addr, err := b.gate.Wait(ctx)
	if err != nil {
		if st, _, _ := b.gate.Snapshot(); st == readiness.Pending {
			kind := KindCanceled
			if errors.Is(err, context.DeadlineExceeded) {
				kind = KindTimeout
			}
			return nil, b.fail(ctx, &Error{Kind: kind, Method: method, Err: err})
		}
		return nil, b.fail(ctx, &Error{Kind: KindUnavailable, Method: method, Err: err})
	}

	c, err := b.registry.Get(addr)
	if err != nil {
		return nil, b.fail(ctx, &Error{Kind: KindConnection, Method: method, Err: err})
	}
	return c, nil
}

func (b *Bridge) fail(ctx context.Context, err *Error) *Error {
	level := slog.LevelError
	if err.Kind == KindCanceled {
		level = slog.LevelInfo
	}
	b.logger.Log(ctx, level, "Bridge call failed",
		"method", err.Method,
		"kind", string(err.Kind),
		"requestId", agentservice.OutgoingRequestID(ctx),
		"error", err.Err,
	)
	return err
}

package bridge

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"structview/agent-shell/services/shell/internal/readiness"
)

type Kind string

const (
	// KindUnavailable means the worker never became ready. It is terminal.
	KindUnavailable Kind = "unavailable"
	KindConnection  Kind = "connection"
	KindTimeout     Kind = "timeout"
	// KindRemote is a gRPC status returned by the worker itself.
	KindRemote   Kind = "remote"
	KindCanceled Kind = "canceled"
)

// Error is returned by every bridge call that fails.
type Error struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindUnavailable {
		if errors.Is(e.Err, readiness.ErrUnavailable) {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", readiness.ErrUnavailable, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Method, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every unavailable error match readiness.ErrUnavailable.
func (e *Error) Is(target error) bool {
	return e.Kind == KindUnavailable && target == readiness.ErrUnavailable
}

// KindOf returns the kind of a bridge error, or "" for any other error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// classify maps an RPC failure to a Kind. caller is the context the bridge
// was invoked with, before the per-call deadline was attached.
func classify(caller context.Context, err error) Kind {
	if errors.Is(caller.Err(), context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	st, ok := status.FromError(err)
	if !ok {
		return KindConnection
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return KindTimeout
	case codes.Unavailable:
		return KindConnection
	case codes.Canceled:
		return KindCanceled
	default:
		return KindRemote
	}
}

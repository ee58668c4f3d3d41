// Package readiness decides when the worker can take requests: a Detector
// scans the worker's output for its listening address and settles a Gate
// that any number of callers wait on.
package readiness

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is used when the gate is rejected without a cause.
var ErrUnavailable = errors.New("backend unavailable")

type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate is a single-assignment cell: it leaves Pending at most once, either
// Ready with an address or Failed with a cause, and never changes after that.
type Gate struct {
	mu    sync.Mutex
	done  chan struct{}
	state State
	addr  string
	err   error
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Resolve moves the gate to Ready. It reports false and changes nothing when
// the gate has already settled.
func (g *Gate) Resolve(addr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Pending {
		return false
	}
	g.state = Ready
	g.addr = addr
	close(g.done)
	return true
}

// Reject moves the gate to Failed. It reports false and changes nothing when
// the gate has already settled.
func (g *Gate) Reject(cause error) bool {
	if cause == nil {
		cause = ErrUnavailable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Pending {
		return false
	}
	g.state = Failed
	g.err = cause
	close(g.done)
	return true
}

// Done is closed when the gate settles.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks the calling goroutine until the gate settles or ctx ends.
// Every waiter observes the same address or the same cause.
func (g *Gate) Wait(ctx context.Context) (string, error) {
	select {
	case <-g.done:
	case <-ctx.Done():
		// Prefer the settled outcome when both are ready.
		select {
		case <-g.done:
		default:
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Ready {
		return g.addr, nil
	}
	return "", g.err
}

// Snapshot returns the current state without blocking.
func (g *Gate) Snapshot() (State, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.addr, g.err
}

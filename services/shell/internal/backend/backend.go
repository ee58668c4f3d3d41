// Package backend owns one worker for the lifetime of the shell. It spawns
// the worker, settles the readiness gate from the worker's output and hands
// out the bridge that forwards calls to it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"structview/agent-shell/pkg/config"
	helpers "structview/agent-shell/pkg/shared"
	"structview/agent-shell/pkg/shared/defs"
	"structview/agent-shell/services/shell/internal/bridge"
	"structview/agent-shell/services/shell/internal/clients"
	"structview/agent-shell/services/shell/internal/metrics"
	"structview/agent-shell/services/shell/internal/readiness"
	"structview/agent-shell/services/shell/internal/supervisor"
)

type Backend struct {
	instanceId uuid.UUID
	logger     *slog.Logger

	gate       *readiness.Gate
	supervisor *supervisor.Supervisor
	registry   *clients.Registry
	bridge     *bridge.Bridge

	stopOnce sync.Once
	stopErr  error
}

// Start launches the worker described by cfg. It never fails: a launch
// problem rejects the gate, so every bridge call reports the backend as
// unavailable. m may be nil. The worker is stopped when ctx ends.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Backend {
	id := uuid.New()
	logger = logger.With("backendId", id.String())

	gate := readiness.NewGate()
	registry := clients.NewRegistry(logger)

	opts := bridge.Options{
		PingTimeout:    cfg.Bridge.PingTimeout,
		ExtractTimeout: cfg.Bridge.ExtractTimeout,
	}
	if m != nil {
		opts.Recorder = m
		m.SetBackendState(readiness.Pending)
		go func() {
			<-gate.Done()
			st, _, _ := gate.Snapshot()
			m.SetBackendState(st)
		}()
	}

	b := &Backend{
		instanceId: id,
		logger:     logger,
		gate:       gate,
		registry:   registry,
		bridge:     bridge.New(gate, registry, opts, logger),
	}

	if err := b.launch(cfg.Worker); err != nil {
		gate.Reject(fmt.Errorf("%w: %w", readiness.ErrUnavailable, err))
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = b.Stop()
		case <-b.supervisorDone():
		}
	}()

	return b
}

func (b *Backend) launch(cfg config.WorkerConfig) error {
	path, err := helpers.ResolveInstallPath("", cfg.Path)
	if err != nil {
		return fmt.Errorf("resolve worker path: %w", err)
	}

	env := append([]string{}, cfg.Env...)
	env = append(env, "GRPC_PORT="+strconv.Itoa(cfg.GrpcPort))

	b.supervisor = supervisor.New(supervisor.Options{
		Path:        path,
		Args:        cfg.Args,
		Env:         env,
		Dir:         cfg.Dir,
		StopTimeout: cfg.StopTimeout,
	}, b.logger)

	streams, err := b.supervisor.Start()
	if err != nil {
		return err
	}

	readiness.NewDetector(b.gate, cfg.DialHost, b.logger).
		Attach(streams.Stdout, streams.Stderr, b.supervisor, cfg.ReadyTimeout)
	return nil
}

// supervisorDone is closed when the worker is gone. It never closes when the
// worker could not even be configured.
func (b *Backend) supervisorDone() <-chan struct{} {
	if b.supervisor == nil {
		return nil
	}
	return b.supervisor.Done()
}

func (b *Backend) Bridge() *bridge.Bridge {
	return b.bridge
}

// Settled is closed once the gate leaves pending.
func (b *Backend) Settled() <-chan struct{} {
	return b.gate.Done()
}

// Stop terminates the worker and closes every client. In-flight calls are
// not drained. Safe to call more than once.
func (b *Backend) Stop() error {
	b.stopOnce.Do(func() {
		b.logger.Info("Stopping backend")
		var errs []error
		if b.supervisor != nil {
			if err := b.supervisor.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		b.gate.Reject(fmt.Errorf("%w: backend stopped", readiness.ErrUnavailable))
		if err := b.registry.Close(); err != nil {
			errs = append(errs, err)
		}
		b.stopErr = errors.Join(errs...)
	})
	return b.stopErr
}

func (b *Backend) Status() defs.BackendStatus {
	state, addr, cause := b.gate.Snapshot()
	st := defs.BackendStatus{
		InstanceId: b.instanceId.String(),
		Gate:       state.String(),
		Address:    addr,
		Clients:    b.registry.Len(),
		Worker:     defs.WorkerStatus{State: string(supervisor.StateFailed)},
	}
	if cause != nil {
		st.Error = cause.Error()
	}
	if b.supervisor != nil {
		ws := b.supervisor.Status()
		st.Worker = defs.WorkerStatus{State: string(ws.State), ProcessId: ws.Pid}
		if ws.Exited {
			code := ws.ExitCode
			st.Worker.ExitCode = &code
		}
	}
	return st
}

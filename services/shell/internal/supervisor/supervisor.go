// Package supervisor owns the lifecycle of the worker process: spawn, exit
// observation and termination. It exposes the worker's output streams but
// never interprets them.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

var (
	ErrExecutableNotFound = errors.New("worker executable not found")
	ErrAlreadyStarted     = errors.New("worker already started")
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateExited   State = "exited"
	// StateFailed means the process never started.
	StateFailed State = "failed"
)

type Options struct {
	Path        string
	Args        []string
	Env         []string
	Dir         string
	StopTimeout time.Duration
}

// Streams are the worker's output pipes. Both must be drained until EOF,
// otherwise the worker blocks on writes and its exit is never observed.
type Streams struct {
	Stdout io.Reader
	Stderr io.Reader
}

type Status struct {
	State    State
	Pid      int
	ExitCode int
	// Exited reports whether ExitCode is meaningful.
	Exited bool
}

type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	exitCode int
	exitErr  error
	done     chan struct{}
	stopping bool
}

func New(opts Options, logger *slog.Logger) *Supervisor {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	return &Supervisor{
		opts:   opts,
		logger: logger.With("component", "supervisor"),
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// Start spawns the worker. A missing executable or a spawn error is returned
// synchronously and leaves the supervisor permanently failed.
func (s *Supervisor) Start() (Streams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return Streams{}, ErrAlreadyStarted
	}
	s.state = StateStarting

	info, err := os.Stat(s.opts.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrExecutableNotFound, s.opts.Path)
		}
		return Streams{}, s.failLocked(err)
	}
	if info.IsDir() {
		return Streams{}, s.failLocked(fmt.Errorf("%w: %s is a directory", ErrExecutableNotFound, s.opts.Path))
	}

	cmd := exec.Command(s.opts.Path, s.opts.Args...)
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(), s.opts.Env...)
	// No stdin: the child reads from the null device and sees EOF at once.
	cmd.Stdin = nil

	// exec copies output into the pipe writers and Wait returns only after
	// those copies finish, so readers see everything the worker wrote.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	// Bound Wait when a grandchild keeps the output pipes open.
	cmd.WaitDelay = s.opts.StopTimeout

	s.logger.Info("Spawning worker", "path", s.opts.Path, "args", s.opts.Args)
	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return Streams{}, s.failLocked(fmt.Errorf("failed to start worker: %w", err))
	}

	s.cmd = cmd
	s.state = StateRunning
	s.logger.Info("Worker started", "pid", cmd.Process.Pid)

	go s.observe(cmd, stdoutW, stderrW)

	return Streams{Stdout: stdoutR, Stderr: stderrR}, nil
}

func (s *Supervisor) failLocked(err error) error {
	s.state = StateFailed
	s.exitErr = err
	close(s.done)
	s.logger.Error("Worker failed to start", "error", err)
	return err
}

// observe waits for the worker to exit and records how it ended.
func (s *Supervisor) observe(cmd *exec.Cmd, stdoutW, stderrW *io.PipeWriter) {
	err := cmd.Wait()
	_ = stdoutW.Close()
	_ = stderrW.Close()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	s.mu.Lock()
	s.state = StateExited
	s.exitCode = code
	s.exitErr = err
	s.cmd = nil
	stopping := s.stopping
	close(s.done)
	s.mu.Unlock()

	if err != nil && !stopping {
		s.logger.Error("Worker exited", "exitCode", code, "error", err)
	} else {
		s.logger.Info("Worker exited", "exitCode", code)
	}
}

// Done is closed once the worker has exited or failed to start.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Err returns why the worker ended: the spawn error, the exit error, or nil
// after a clean exit. Only meaningful after Done is closed.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state}
	if s.cmd != nil && s.cmd.Process != nil {
		st.Pid = s.cmd.Process.Pid
	}
	if s.state == StateExited {
		st.ExitCode = s.exitCode
		st.Exited = true
	}
	return st
}

// Stop terminates the worker: SIGTERM first, kill after the stop timeout.
// It does not wait for in-flight requests and is safe to call repeatedly,
// before Start, or after the worker already exited.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	if cmd == nil || cmd.Process == nil || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	s.logger.Info("Stopping worker", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		s.logger.Warn("Error sending SIGTERM to worker, killing", "error", err)
		return s.kill(cmd)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.opts.StopTimeout):
		s.logger.Info("Worker did not exit in time, force killing")
		return s.kill(cmd)
	}
}

func (s *Supervisor) kill(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill worker: %w", err)
	}
	<-s.done
	return nil
}

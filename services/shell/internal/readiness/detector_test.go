package readiness

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	helpers "structview/agent-shell/pkg/shared"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"listening on :50051", "127.0.0.1:50051", true},
		{"2025/01/01 10:00:00 Go gRPC server listening on [::]:50051", "127.0.0.1:50051", true},
		{"listening on 0.0.0.0:8081", "127.0.0.1:8081", true},
		{"listening on 10.0.0.5:9000", "10.0.0.5:9000", true},
		{"listening on [::1]:9000", "[::1]:9000", true},
		{"listening on localhost:9000", "localhost:9000", true},
		{`{"msg":"listening on :7000"}`, "127.0.0.1:7000", true},
		{"listening on :0", "", false},
		{"listening on :70000", "", false},
		{"listening on :abc", "", false},
		{"listening on :5005x", "", false},
		{"listening on http://host:80", "", false},
		{"server started", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAddress(tt.line, "127.0.0.1")
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseAddress(%q) = (%q, %v), want (%q, %v)", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

type fakeProcess struct {
	done    chan struct{}
	mu      sync.Mutex
	err     error
	stopped int
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakeProcess) Stop() error {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) exit(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

func (p *fakeProcess) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func waitGate(t *testing.T, g *Gate) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := g.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("gate did not settle")
	}
	return addr, err
}

func TestDetectorFirstSignalWins(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())

	d.Scan("stdout", strings.NewReader("booting\nlistening on :50051\nlistening on :60000\n"))

	addr, err := waitGate(t, g)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if addr != "127.0.0.1:50051" {
		t.Errorf("addr = %q, want first signal", addr)
	}
}

func TestDetectorSkipsUnparsableSignal(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())

	d.Scan("stdout", strings.NewReader("listening on :99999\nlistening on :4000\n"))

	if addr, _ := waitGate(t, g); addr != "127.0.0.1:4000" {
		t.Errorf("addr = %q", addr)
	}
}

func TestDetectorBuffersPartialLines(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	pr, pw := io.Pipe()
	go d.Scan("stdout", pr)

	// "listening on :5" alone would already look like an address.
	_, _ = pw.Write([]byte("listening on :5"))
	time.Sleep(20 * time.Millisecond)
	if st, _, _ := g.Snapshot(); st != Pending {
		t.Fatalf("gate settled on a partial line: %s", st)
	}
	_, _ = pw.Write([]byte("0051\n"))
	_ = pw.Close()

	if addr, _ := waitGate(t, g); addr != "127.0.0.1:50051" {
		t.Errorf("addr = %q, want full port", addr)
	}
}

func TestDetectorAttachReadsStderr(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	proc := newFakeProcess()

	d.Attach(strings.NewReader("nothing here\n"), strings.NewReader("listening on :7777\n"), proc, 0)

	addr, err := waitGate(t, g)
	if err != nil || addr != "127.0.0.1:7777" {
		t.Fatalf("got (%q, %v)", addr, err)
	}

	// A clean exit after readiness does not touch the gate.
	proc.exit(nil)
	time.Sleep(20 * time.Millisecond)
	if st, addr, _ := g.Snapshot(); st != Ready || addr != "127.0.0.1:7777" {
		t.Errorf("gate changed after exit: %s %q", st, addr)
	}
}

func TestDetectorExitBeforeReady(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	proc := newFakeProcess()

	d.Attach(strings.NewReader("panic: boom\n"), strings.NewReader(""), proc, 0)
	exitErr := errors.New("exit status 2")
	proc.exit(exitErr)

	_, err := waitGate(t, g)
	if !errors.Is(err, ErrExitedBeforeReady) {
		t.Fatalf("err = %v, want ErrExitedBeforeReady", err)
	}
	if !errors.Is(err, exitErr) {
		t.Errorf("err = %v, want it to wrap the exit error", err)
	}
}

func TestDetectorCleanExitBeforeReadyFails(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	proc := newFakeProcess()

	d.Attach(strings.NewReader(""), strings.NewReader(""), proc, 0)
	proc.exit(nil)

	if _, err := waitGate(t, g); !errors.Is(err, ErrExitedBeforeReady) {
		t.Fatalf("err = %v, want ErrExitedBeforeReady", err)
	}
}

func TestDetectorLineBeforeExitWins(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	proc := newFakeProcess()

	stdoutR, stdoutW := io.Pipe()
	d.Attach(stdoutR, strings.NewReader(""), proc, 0)

	// The process is reported dead while its last line is still in flight.
	proc.exit(errors.New("exit status 1"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = stdoutW.Write([]byte("listening on :6000\n"))
		_ = stdoutW.Close()
	}()

	addr, err := waitGate(t, g)
	if err != nil || addr != "127.0.0.1:6000" {
		t.Fatalf("got (%q, %v), want the announced address", addr, err)
	}
}

func TestDetectorReadyTimeout(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	proc := newFakeProcess()

	stdoutR, stdoutW := io.Pipe()
	defer func() { _ = stdoutW.Close() }()
	d.Attach(stdoutR, strings.NewReader(""), proc, 50*time.Millisecond)

	if _, err := waitGate(t, g); !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("err = %v, want ErrReadyTimeout", err)
	}
	deadline := time.Now().Add(time.Second)
	for proc.stopCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if proc.stopCount() != 1 {
		t.Errorf("worker stopped %d times, want 1", proc.stopCount())
	}
}

func TestDetectorKeepsDrainingAfterReady(t *testing.T) {
	g := NewGate()
	d := NewDetector(g, "127.0.0.1", helpers.Discard())
	pr, pw := io.Pipe()

	done := make(chan struct{})
	go func() {
		d.Scan("stdout", pr)
		close(done)
	}()

	_, _ = pw.Write([]byte("listening on :5000\n"))
	// These writes block forever if the detector stopped reading.
	for i := 0; i < 100; i++ {
		if _, err := pw.Write([]byte("more output\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	_ = pw.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scan did not finish")
	}
}

package readiness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrExitedBeforeReady = errors.New("worker exited before announcing its address")
	ErrReadyTimeout      = errors.New("worker did not become ready in time")
)

// listenRe matches the worker's announcement, e.g. "listening on :50051",
// "listening on 127.0.0.1:50051" or "listening on [::]:50051".
var listenRe = regexp.MustCompile(`listening on (\[[^\]\s]*\]|[\w.\-]*):(\d+)\b`)

const maxLineSize = 1024 * 1024

// ParseAddress extracts a dialable host:port from a readiness line. An empty
// or unspecified host is replaced by dialHost. Ports outside 1..65535 do not
// count as a match.
func ParseAddress(line, dialHost string) (string, bool) {
	m := listenRe.FindStringSubmatch(line)
	if len(m) != 3 {
		return "", false
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port < 1 || port > 65535 {
		return "", false
	}
	host := strings.TrimSuffix(strings.TrimPrefix(m[1], "["), "]")
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = dialHost
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), true
}

// Process is the part of the supervisor the detector watches.
type Process interface {
	Done() <-chan struct{}
	Err() error
	Stop() error
}

type Detector struct {
	gate     *Gate
	dialHost string
	logger   *slog.Logger
}

func NewDetector(gate *Gate, dialHost string, logger *slog.Logger) *Detector {
	return &Detector{
		gate:     gate,
		dialHost: dialHost,
		logger:   logger.With("component", "readiness"),
	}
}

// Attach scans both output streams and watches proc. The gate is resolved by
// the first readiness line on either stream, or rejected when the worker
// exits first or readyTimeout (if positive) passes; the worker is stopped on
// timeout.
func (d *Detector) Attach(stdout, stderr io.Reader, proc Process, readyTimeout time.Duration) {
	var scanners sync.WaitGroup
	scanners.Add(2)
	go func() {
		defer scanners.Done()
		d.Scan("stdout", stdout)
	}()
	go func() {
		defer scanners.Done()
		d.Scan("stderr", stderr)
	}()
	go d.watch(&scanners, proc, readyTimeout)
}

// Scan reads r line by line until EOF. Partial lines are buffered until
// complete. After the gate settles lines are only forwarded to the log; the
// stream is still drained so the worker never blocks on a full pipe.
func (d *Detector) Scan(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		d.logger.Info("Worker output", "stream", stream, "line", line)

		select {
		case <-d.gate.Done():
			continue
		default:
		}

		addr, ok := ParseAddress(line, d.dialHost)
		if !ok {
			continue
		}
		if d.gate.Resolve(addr) {
			d.logger.Info("Worker ready", "address", addr, "stream", stream)
		}
	}
	if err := sc.Err(); err != nil {
		d.logger.Warn("Stopped scanning worker output", "stream", stream, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

func (d *Detector) watch(scanners *sync.WaitGroup, proc Process, readyTimeout time.Duration) {
	var timeout <-chan time.Time
	if readyTimeout > 0 {
		timer := time.NewTimer(readyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-d.gate.Done():
	case <-proc.Done():
		// A readiness line written just before exit must still win.
		scanners.Wait()
		cause := exitCause(proc.Err())
		if d.gate.Reject(cause) {
			d.logger.Error("Worker exited before becoming ready", "error", cause)
		}
	case <-timeout:
		cause := fmt.Errorf("%w after %s", ErrReadyTimeout, readyTimeout)
		if d.gate.Reject(cause) {
			d.logger.Error("Worker readiness timed out", "error", cause)
			if err := proc.Stop(); err != nil {
				d.logger.Error("Error stopping worker", "error", err)
			}
		}
	}
}

func exitCause(err error) error {
	if err == nil {
		return fmt.Errorf("%w (exit status 0)", ErrExitedBeforeReady)
	}
	return fmt.Errorf("%w: %w", ErrExitedBeforeReady, err)
}

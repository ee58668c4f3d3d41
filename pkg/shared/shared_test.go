package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "structview-shell", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["service"] != "structview-shell" || entry["key"] != "value" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLoggerToBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "svc", "loud")
	logger.Debug("dropped")
	logger.Info("kept")
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 1 {
		t.Errorf("got %d lines, want 1: %q", n, buf.String())
	}
}

func TestResolveInstallPath(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name string
		path string
		want string
	}{
		{"relative", "structview-worker", filepath.Join(base, "structview-worker")},
		{"nested", "bin/worker", filepath.Join(base, "bin", "worker")},
		{"absolute", "/opt/structview/worker", "/opt/structview/worker"},
		{"unclean absolute", "/opt/structview/../worker", "/opt/worker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInstallPath(base, tt.path)
			if err != nil {
				t.Fatalf("ResolveInstallPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := ResolveInstallPath(base, ""); err == nil {
		t.Error("empty path should fail")
	}
}

func TestResolveInstallPathDefaultsToInstallDir(t *testing.T) {
	dir, err := InstallDir()
	if err != nil {
		t.Fatalf("InstallDir: %v", err)
	}
	got, err := ResolveInstallPath("", "worker")
	if err != nil {
		t.Fatalf("ResolveInstallPath: %v", err)
	}
	if got != filepath.Join(dir, "worker") {
		t.Errorf("got %q, want it under %q", got, dir)
	}
}

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestCloseOrLog(t *testing.T) {
	ok := &closer{}
	CloseOrLog(ok)
	failing := &closer{err: errors.New("already closed")}
	CloseOrLog(failing)
	if !ok.closed || !failing.closed {
		t.Error("CloseOrLog should always call Close")
	}
}

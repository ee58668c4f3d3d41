package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	ConfigureViper(v)
	// Keep the working directory's config.toml, if any, out of the tests.
	v.SetConfigName("structview-test-no-such-config")
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(newViper(t), "", "")
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Bridge.PingTimeout != 3*time.Second {
		t.Errorf("ping timeout = %s, want 3s", cfg.Bridge.PingTimeout)
	}
	if cfg.Bridge.ExtractTimeout != 30*time.Second {
		t.Errorf("extract timeout = %s, want 30s", cfg.Bridge.ExtractTimeout)
	}
	if cfg.Worker.Path != "structview-worker" {
		t.Errorf("worker path = %q", cfg.Worker.Path)
	}
	if cfg.Worker.DialHost != "127.0.0.1" {
		t.Errorf("dial host = %q", cfg.Worker.DialHost)
	}
	if cfg.Shell.Port != 8090 {
		t.Errorf("shell port = %d, want 8090", cfg.Shell.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[worker]
path = "/opt/structview/worker"
args = ["--verbose"]
ready_timeout = "2s"

[bridge]
extract_timeout = "0s"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadWith(newViper(t), path, "")
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.Worker.Path != "/opt/structview/worker" {
		t.Errorf("worker path = %q", cfg.Worker.Path)
	}
	if len(cfg.Worker.Args) != 1 || cfg.Worker.Args[0] != "--verbose" {
		t.Errorf("worker args = %v", cfg.Worker.Args)
	}
	if cfg.Worker.ReadyTimeout != 2*time.Second {
		t.Errorf("ready timeout = %s", cfg.Worker.ReadyTimeout)
	}
	if cfg.Bridge.ExtractTimeout != 0 {
		t.Errorf("extract timeout = %s, want unbounded", cfg.Bridge.ExtractTimeout)
	}
}

func TestLoadOverride(t *testing.T) {
	cfg, err := LoadWith(newViper(t), "", "shell.port:9100, bridge.ping_timeout:500ms")
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Shell.Port != 9100 {
		t.Errorf("shell port = %d, want 9100", cfg.Shell.Port)
	}
	if cfg.Bridge.PingTimeout != 500*time.Millisecond {
		t.Errorf("ping timeout = %s", cfg.Bridge.PingTimeout)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		override string
		wantErr  string
	}{
		{"malformed pair", "shell.port", "invalid override"},
		{"zero ping timeout", "bridge.ping_timeout:0s", "ping_timeout"},
		{"port out of range", "worker.grpc_port:70000", "grpc_port"},
		{"negative extract timeout", "bridge.extract_timeout:-1s", "extract_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(newViper(t), "", tt.override)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("STRUCTVIEW_WORKER_DIAL_HOST", "localhost")
	t.Setenv("GRPC_PORT", "50051")

	cfg, err := LoadWith(newViper(t), "", "")
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Worker.DialHost != "localhost" {
		t.Errorf("dial host = %q, want localhost", cfg.Worker.DialHost)
	}
	if cfg.Serve.Port != 50051 {
		t.Errorf("serve port = %d, want 50051", cfg.Serve.Port)
	}
}

func TestBindFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8090, "")
	if err := fs.Parse([]string{"--port=9200"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v := newViper(t)
	if err := BindFlagSet(v, fs, map[string]string{"port": "shell.port"}); err != nil {
		t.Fatalf("BindFlagSet: %v", err)
	}
	cfg, err := LoadWith(v, "", "")
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Shell.Port != 9200 {
		t.Errorf("shell port = %d, want 9200", cfg.Shell.Port)
	}

	if err := BindFlagSet(v, fs, map[string]string{"missing": "x"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"structview/agent-shell/pkg/config"
	helpers "structview/agent-shell/pkg/shared"
	"structview/agent-shell/services/shell/internal/api"
	"structview/agent-shell/services/shell/internal/backend"
	"structview/agent-shell/services/shell/internal/metrics"
)

func main() {
	logger := helpers.NewLogger("structview-shell", "info")
	slog.SetDefault(logger)

	id := uuid.New()
	slog.Info("Starting shell", "uuid", id.String())

	pflag.String("config", "", "Path to config file (default: ./config.toml)")
	pflag.String("log_level", "info", "Log level (debug|info|warn|error)")
	pflag.Int("port", 8090, "HTTP server port")
	pflag.String("hostname", "127.0.0.1", "Hostname to listen on")
	pflag.String("worker_path", "structview-worker", "Path to worker binary, relative to the shell's install directory")
	pflag.Duration("ready_timeout", 10*time.Second, "How long to wait for the worker to announce its address (0 waits forever)")
	pflag.Duration("extract_timeout", 30*time.Second, "Deadline for extraction calls (0 disables it)")
	pflag.String("override", "", "Override simple config values (string, int, bool) as comma-separated key:value pairs (e.g., shell.port:9000,log_level:debug)")

	pflag.Parse()

	if err := config.BindFlags(map[string]string{
		"log_level":       "log_level",
		"port":            "shell.port",
		"hostname":        "shell.hostname",
		"worker_path":     "worker.path",
		"ready_timeout":   "worker.ready_timeout",
		"extract_timeout": "bridge.extract_timeout",
	}); err != nil {
		slog.Error("Failed to bind flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(pflag.Lookup("config").Value.String(), pflag.Lookup("override").Value.String())
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Update the logger to use the configured log level
	logger = helpers.NewLogger("structview-shell", cfg.LogLevel).With("uuid", id.String())
	slog.SetDefault(logger)

	// Cancelled on SIGINT/SIGTERM; the backend stops its worker when it is.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	b := backend.Start(ctx, cfg, logger, m)

	srv := api.NewServer(b.Bridge(), b, m.Handler(), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Shell.Hostname, cfg.Shell.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	// Run server in background
	go func() {
		slog.Info("Shell listening", "hostname", cfg.Shell.Hostname, "port", cfg.Shell.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Signal received, shutting down...")
	case err := <-serveErr:
		slog.Error("ListenAndServe error", "error", err)
		exitCode = 1
	}

	if err := b.Stop(); err != nil {
		slog.Error("Error stopping backend", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server Shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shut down gracefully")
	}

	slog.Info("Shell exited", "exitCode", exitCode)
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}

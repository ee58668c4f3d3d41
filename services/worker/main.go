package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	pb "structview/agent-shell/pkg/agentservice"
	"structview/agent-shell/pkg/config"
	helpers "structview/agent-shell/pkg/shared"
)

func main() {
	logger := helpers.NewLogger("structview-worker", "info")
	slog.SetDefault(logger)

	pflag.String("config", "", "Path to config file")
	pflag.String("log_level", "info", "Log level (debug|info|warn|error)")
	pflag.Int("port", 0, "gRPC port, 0 picks a free one (default: $GRPC_PORT)")
	pflag.String("hostname", "", "Hostname to listen on")
	pflag.String("override", "", "Override simple config values as comma-separated key:value pairs")
	pflag.Parse()

	if err := config.BindFlags(map[string]string{
		"log_level": "log_level",
		"port":      "serve.port",
		"hostname":  "serve.hostname",
	}); err != nil {
		slog.Error("Failed to bind flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(pflag.Lookup("config").Value.String(), pflag.Lookup("override").Value.String())
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger = helpers.NewLogger("structview-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Serve, logger); err != nil {
		slog.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.WorkerServiceConfig, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := newAgentServer(logger)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	pb.RegisterServer(s, srv)

	port := lis.Addr().(*net.TCPAddr).Port
	logger.Info("Starting worker", "uuid", srv.instanceId.String(), "port", port)
	// The shell waits for this exact line before sending any request.
	fmt.Printf("listening on :%d\n", port)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Signal received, shutting down...")
		s.GracefulStop()
		return nil
	}
}

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "structview/agent-shell/pkg/agentservice"
)

type agentServer struct {
	instanceId uuid.UUID
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	history []pb.ExtractedRecord
}

func newAgentServer(logger *slog.Logger) *agentServer {
	return &agentServer{
		instanceId: uuid.New(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *agentServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {
	s.logger.Info("Received Ping", "message", req.Message, "requestId", pb.IncomingRequestID(ctx))
	return &pb.PingResponse{Reply: "Pong! Go Backend is online."}, nil
}

// ExtractFeatures validates the request and returns a placeholder result.
// Problems with the input are reported in ErrorMessage rather than as RPC errors.
func (s *agentServer) ExtractFeatures(ctx context.Context, req *pb.FeatureExtractRequest) (*pb.FeatureExtractResponse, error) {
	s.logger.Info("Received ExtractFeatures", "url", req.PageUrl, "fields", req.ExtractionFields, "requestId", pb.IncomingRequestID(ctx))

	if strings.TrimSpace(req.PageUrl) == "" {
		return &pb.FeatureExtractResponse{ErrorMessage: "page url is required"}, nil
	}
	if len(req.ExtractionFields) == 0 {
		return &pb.FeatureExtractResponse{ErrorMessage: "at least one extraction field is required"}, nil
	}

	data, err := json.Marshal(map[string]any{
		"status": "Not Implemented Yet",
		"fields": req.ExtractionFields,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return &pb.FeatureExtractResponse{ExtractedJson: string(data)}, nil
}

func (s *agentServer) SaveExtractedRecord(ctx context.Context, rec *pb.ExtractedRecord) error {
	if rec.Url == "" {
		return status.Error(codes.InvalidArgument, "record url is required")
	}
	saved := *rec
	if saved.SavedAt == 0 {
		saved.SavedAt = s.now().Unix()
	}

	s.mu.Lock()
	s.history = append(s.history, saved)
	count := len(s.history)
	s.mu.Unlock()

	s.logger.Info("Saved extracted record", "url", rec.Url, "records", count, "requestId", pb.IncomingRequestID(ctx))
	return nil
}

func (s *agentServer) GetExtractionHistory(_ context.Context) (*pb.ExtractionHistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &pb.ExtractionHistoryResponse{Records: append([]pb.ExtractedRecord(nil), s.history...)}, nil
}

// loggingInterceptor logs every unary call with its duration and status code.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
			"requestId", pb.IncomingRequestID(ctx),
		)
		return resp, err
	}
}

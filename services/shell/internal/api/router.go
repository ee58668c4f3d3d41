// Package api is the shell's local HTTP surface. The UI calls the bridge
// through it and follows backend readiness over a WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"structview/agent-shell/pkg/agentservice"
	"structview/agent-shell/pkg/shared/defs"
)

const RequestIDHeader = "X-Request-Id"

// Bridge is the set of worker calls exposed over HTTP.
type Bridge interface {
	Ping(ctx context.Context, message string) (string, error)
	ExtractFeatures(ctx context.Context, req agentservice.FeatureExtractRequest) (agentservice.FeatureExtractResponse, error)
	SaveExtractedRecord(ctx context.Context, rec agentservice.ExtractedRecord) error
	ExtractionHistory(ctx context.Context) ([]agentservice.ExtractedRecord, error)
}

// StatusSource reports the backend state.
type StatusSource interface {
	Status() defs.BackendStatus
	// Settled is closed once readiness is decided.
	Settled() <-chan struct{}
}

type Server struct {
	bridge  Bridge
	status  StatusSource
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer builds the API. metrics may be nil, in which case /metrics is
// not served.
func NewServer(bridge Bridge, status StatusSource, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		bridge:  bridge,
		status:  status,
		metrics: metrics,
		logger:  logger.With("component", "api"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ping", s.handlePing)
		r.Post("/extract", s.handleExtract)
		r.Post("/records", s.handleSaveRecord)
		r.Get("/records", s.handleHistory)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// requestID tags each request with a uuid, or keeps the caller's id when it
// sent a valid one, and forwards it to the worker as gRPC metadata.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := agentservice.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", agentservice.OutgoingRequestID(r.Context()),
		)
	})
}

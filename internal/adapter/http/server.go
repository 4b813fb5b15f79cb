package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/stream"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultHeartbeat = 15 * time.Second

// TankService is the query and trigger surface of the reading pipeline.
type TankService interface {
	ListTanks(ctx context.Context) ([]domain.Tank, error)
	GetTank(ctx context.Context, id string) (domain.Tank, error)
	LatestReading(ctx context.Context, tankID string) (domain.Reading, error)
	LatestReadings(ctx context.Context) ([]domain.TankReading, error)
	ReadingHistory(ctx context.Context, tankID string, limit int) ([]domain.Reading, error)
	ManualTrigger(ctx context.Context, tankID string) (domain.Reading, error)
}

// EventSource hands out live update subscriptions.
type EventSource interface {
	Subscribe() *stream.Subscription
}

// Options configures the HTTP server.
type Options struct {
	Addr              string
	CORSAllowedOrigin string
	// Heartbeat is the SSE keep-alive and WebSocket ping interval.
	Heartbeat time.Duration
}

// Server exposes the tank API, live event streams, and health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	tanks      TankService
	events     EventSource
	origin     string
	heartbeat  time.Duration
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(opts Options, tanks TankService, events EventSource, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if opts.CORSAllowedOrigin == "" {
		opts.CORSAllowedOrigin = "*"
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      cors(opts.CORSAllowedOrigin, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tanks:     tanks,
		events:    events,
		origin:    opts.CORSAllowedOrigin,
		heartbeat: opts.Heartbeat,
		logger:    logger,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/tanks", s.handleListTanks)
	mux.HandleFunc("GET /api/tanks/{id}", s.handleGetTank)
	mux.HandleFunc("GET /api/tanks/{id}/readings/latest", s.handleLatestReading)
	mux.HandleFunc("GET /api/tanks/{id}/readings", s.handleReadingHistory)
	mux.HandleFunc("POST /api/tanks/{id}/readings", s.handleTrigger)
	mux.HandleFunc("GET /api/readings/latest", s.handleLatestReadings)
	mux.HandleFunc("GET /api/stream", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
// Open streams end when the distributor is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

// writeError maps domain errors to status codes. Internal details are logged,
// not returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

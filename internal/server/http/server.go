// Package httpserver provides the operator HTTP API of the catalog sync service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/database"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// HealthChecker reports database health. Implemented by *database.DB.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the operator HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	factory    repository.StoreFactory
	runner     *jobs.Runner
	enqueuer   *queue.Enqueuer
	health     HealthChecker
	validate   *validator.Validate
	logger     zerolog.Logger
	cfg        Config
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	factory repository.StoreFactory,
	runner *jobs.Runner,
	enqueuer *queue.Enqueuer,
	health HealthChecker,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		factory:  factory,
		runner:   runner,
		enqueuer: enqueuer,
		health:   health,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
		cfg:      cfg,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// newValidator reports struct fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, promhttp.Handler())
	}

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/", s.scheduleJob)
		r.Get("/", s.listJobs)
		r.Get("/{jobID}", s.getJob)
		r.Post("/run-due", s.runDue)
		r.Post("/refresh-all", s.refreshAll)
		r.Post("/maintenance", s.maintenance)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness. It does not touch the database.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready only while the database answers pings.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.health.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, readinessResponse{Status: "not_ready", Database: health})
		return
	}
	writeJSON(w, http.StatusOK, readinessResponse{Status: "ready", Database: health})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

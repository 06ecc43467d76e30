package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/auth"
	"github.com/arcazj/openbexi-earth-orbit/internal/health"
	"github.com/arcazj/openbexi-earth-orbit/internal/httputil"
	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/service"
)

// DecayService is what the handlers need from the classification service.
type DecayService interface {
	Latest() *service.Snapshot
	Classify(ctx context.Context, now time.Time) (*service.Snapshot, error)
	Lookup(catalogID string) (service.Result, error)
	RegistryRecord(ctx context.Context, catalogID string) (registry.Record, error)
	ReloadRegistry(ctx context.Context) (int, error)
	Ready() bool
}

// Config holds server settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, svc DecayService, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           newHandler(cfg, svc, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// On-demand classification with ?now= can take a while.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(cfg Config, svc DecayService, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(svc.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/decay", decayListHandler(svc, logger))
	mux.HandleFunc("GET /api/v1/decay/{catalog_id}", decayItemHandler(svc))
	mux.HandleFunc("GET /api/v1/timeline", timelineHandler(svc))
	mux.HandleFunc("GET /api/v1/registry/{catalog_id}", registryItemHandler(svc))
	mux.HandleFunc("POST /api/v1/registry/reload", registryReloadHandler(svc, logger))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// healthCheckPath returns true for health/readiness check paths that should not log at INFO.
func healthCheckPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if healthCheckPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handler "github.com/nullptr0807/runhub/internal/api/handler/api"
	"github.com/nullptr0807/runhub/internal/api/middleware"
	"github.com/nullptr0807/runhub/internal/hub"
	"github.com/nullptr0807/runhub/internal/metrics"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the RunHub HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	RateLimit      float64
	RateLimitBurst int
	MetricsPath    string // empty disables the metrics endpoint
}

// Dependencies are the collaborators the server routes requests to.
type Dependencies struct {
	Hub     *hub.Hub
	Store   runstore.Store
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Hub == nil || deps.Store == nil {
		return nil, fmt.Errorf("hub and store are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := buildRoutes(cfg, deps)
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}, nil
}

func buildRoutes(cfg Config, deps Dependencies) http.Handler {
	strategies := handler.NewStrategiesHandler(deps.Store, deps.Hub)
	runs := handler.NewRunsHandler(deps.Hub, deps.Store)
	merges := handler.NewMergeHandler(deps.Hub)

	v1 := http.NewServeMux()

	v1.HandleFunc("GET /api/v1/strategies", strategies.List)
	v1.HandleFunc("POST /api/v1/strategies", strategies.Create)
	v1.HandleFunc("GET /api/v1/strategies/{id}", strategies.Get)
	v1.HandleFunc("PATCH /api/v1/strategies/{id}", strategies.Update)
	v1.HandleFunc("DELETE /api/v1/strategies/{id}", strategies.Delete)
	v1.HandleFunc("GET /api/v1/strategies/{id}/runs", runs.ListForStrategy)

	// Merge routes are registered before the {id} routes only for
	// readability; the mux picks the more specific pattern either way.
	v1.HandleFunc("POST /api/v1/runs/merge/validate", merges.Validate)
	v1.HandleFunc("POST /api/v1/runs/merge", merges.Merge)

	v1.HandleFunc("POST /api/v1/runs", runs.Upload)
	v1.HandleFunc("GET /api/v1/runs", runs.List)
	v1.HandleFunc("GET /api/v1/runs/{id}", runs.Get)
	v1.HandleFunc("PATCH /api/v1/runs/{id}", runs.Patch)
	v1.HandleFunc("DELETE /api/v1/runs/{id}", runs.Delete)
	v1.HandleFunc("GET /api/v1/runs/{id}/pnl", runs.PnL)
	v1.HandleFunc("GET /api/v1/runs/{id}/parameters", runs.Parameters)
	v1.HandleFunc("GET /api/v1/runs/{id}/events", runs.Events)
	v1.HandleFunc("POST /api/v1/runs/{id}/baseline", runs.SetBaseline)
	v1.HandleFunc("DELETE /api/v1/runs/{id}/baseline", runs.ClearBaseline)
	v1.HandleFunc("GET /api/v1/runs/{id}/compare/{other}", runs.Compare)

	// Authenticated, rate-limited API subtree.
	var protected http.Handler = v1
	protected = middleware.APIKeyAuth(cfg.APIKey)(protected)
	protected = middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst)(protected)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", protected)
	mux.HandleFunc("GET /api/health", handleHealth)
	if deps.Metrics != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath,
			promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/travelmap/internal/application"
	"github.com/jobrunner/travelmap/internal/config"
)

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	maps        *application.MapService
	projections *application.ProjectionService
	registry    *application.LayerRegistry
	health      *application.HealthService
	syncService *application.SyncService
	logger      *slog.Logger
	config      config.ServerConfig
	middleware  []mux.MiddlewareFunc
}

// Option configures optional parts of the server.
type Option func(*Server)

// WithSync exposes the sync trigger endpoint.
func WithSync(svc *application.SyncService) Option {
	return func(s *Server) { s.syncService = svc }
}

// WithMiddleware adds router middleware that runs after logging and
// recovery, e.g. request metrics.
func WithMiddleware(mw ...mux.MiddlewareFunc) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	maps *application.MapService,
	projections *application.ProjectionService,
	registry *application.LayerRegistry,
	health *application.HealthService,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		maps:        maps,
		projections: projections,
		registry:    registry,
		health:      health,
		logger:      logger,
		config:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.middleware...)
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/projections", s.handleListProjections).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/project", s.handleProject).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/invert", s.handleInvert).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/layers", s.handleListLayers).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/layers/{layerId}", s.handleGetLayer).Methods(http.MethodGet, http.MethodOptions)

	// The extension is optional; the configured canvas decides the format.
	api.HandleFunc("/maps/{layerId}.{ext:svg|txt}", s.handleRenderMap).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/maps/{layerId}", s.handleRenderMap).Methods(http.MethodGet, http.MethodOptions)

	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost, http.MethodOptions)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

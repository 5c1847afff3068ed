// Package server exposes the explainer over HTTP with a live dashboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/cache"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/security"
	"github.com/raaihank/codesense/internal/web"
	"github.com/raaihank/codesense/internal/websocket"
	"go.uber.org/zap"
)

// Deps are the components the server routes requests to. Cache and Hub may
// be nil.
type Deps struct {
	Detector *privacy.Detector
	Service  *explain.Service
	Store    audit.Store
	Cache    *cache.ResponseCache
	Hub      *websocket.Hub
}

// Server represents the HTTP API server
type Server struct {
	config    *config.Config
	version   string
	logger    *logger.Logger
	detector  *privacy.Detector
	service   *explain.Service
	store     audit.Store
	cache     *cache.ResponseCache
	wsHub     *websocket.Hub
	limiter   *security.RateLimiter
	router    *mux.Router
	server    *http.Server
	startedAt time.Time
}

// New creates a new server instance
func New(cfg *config.Config, version string, deps Deps, log *logger.Logger) *Server {
	s := &Server{
		config:    cfg,
		version:   version,
		logger:    log.WithComponent("server"),
		detector:  deps.Detector,
		service:   deps.Service,
		store:     deps.Store,
		cache:     deps.Cache,
		wsHub:     deps.Hub,
		limiter:   security.NewRateLimiter(cfg.Security),
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler()).Methods("GET")
	}

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/explain", s.handleExplain).Methods("POST")
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/models", s.handleModels).Methods("GET")
	api.HandleFunc("/detectors", s.handleDetectors).Methods("GET")
	api.HandleFunc("/detectors/{name}", s.handleToggleDetector).Methods("PUT")
	api.HandleFunc("/cache", s.handleClearCache).Methods("DELETE")
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub and serves HTTP until Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting codesense server",
		zap.Int("port", s.config.Server.Port),
		zap.String("base_url", s.config.Completion.BaseURL),
		zap.String("audit_backend", s.config.Audit.Backend),
		zap.Strings("detectors", s.detector.GetEnabledRules()),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
	s.limiter.StartCleanupRoutine(ctx, 30*time.Minute)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping codesense server")
	return s.server.Shutdown(ctx)
}

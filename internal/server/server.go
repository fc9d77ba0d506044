package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"trendpulse/internal/config"
	"trendpulse/internal/health"
	"trendpulse/internal/logger"
	"trendpulse/internal/metrics"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pipeline"
	"trendpulse/internal/scheduler"
	"trendpulse/internal/sources"
	"trendpulse/internal/validator"
)

// Runner starts pipeline runs in the background
type Runner interface {
	Start(ctx context.Context) (string, <-chan pipeline.Result, error)
	Running() bool
}

// JobReporter exposes scheduled job health
type JobReporter interface {
	Health() []scheduler.JobHealth
}

// SourceReporter exposes per-adapter collection health
type SourceReporter interface {
	SourceHealth() []sources.AdapterHealth
}

// Deps are the collaborators behind the API. Runner, Jobs and Sources are
// optional.
type Deps struct {
	DB             persistence.Database
	Runner         Runner
	Validator      *validator.Validator
	Monitor        *health.Monitor
	Jobs           JobReporter
	Sources        SourceReporter
	TopN           int
	MetricsEnabled bool
	Version        string
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     config.Server
	log        *slog.Logger
	started    time.Time

	// runCtx outlives requests so triggered runs finish after the response
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New creates a new HTTP server instance
func New(deps Deps, cfg config.Server) *Server {
	if deps.TopN <= 0 {
		deps.TopN = 10
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    chi.NewRouter(),
		deps:      deps,
		config:    cfg,
		log:       logger.With("server"),
		started:   time.Now(),
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if s.config.RateLimit.Enabled {
		s.router.Use(rateLimit(s.config.RateLimit.Requests))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/digest", s.handleDigest)
	if s.deps.MetricsEnabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)
		r.Get("/status", s.handleStatus)

		r.Route("/trends", func(r chi.Router) {
			r.Get("/", s.handleListTrends)
			r.Get("/{id}", s.handleGetTrend)
			r.Get("/{id}/history", s.handleTrendHistory)
		})

		r.Get("/pitch-cards", s.handleListPitchCards)
		r.Get("/validation", s.handleValidation)
		r.Get("/health/modules", s.handleModuleHealth)
		r.Get("/health/sources", s.handleSourceHealth)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleTriggerRun)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server and cancels triggered runs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")
	defer s.cancelRun()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Package server exposes the content pipeline as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"collegecontent/internal/config"
	"collegecontent/internal/logger"
	"collegecontent/internal/pipeline"
)

// Defaults for unset server timeouts
const (
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 180 * time.Second
	DefaultRequestTimeout = 170 * time.Second
)

// Checker reports whether a dependency is reachable. The model gateway and
// the data store both satisfy it.
type Checker interface {
	TestConnection(ctx context.Context) bool
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	orch       *pipeline.Orchestrator
	checks     map[string]Checker
	config     config.Server
	started    time.Time
}

// New creates a new HTTP server instance. checks feed /health.
func New(orch *pipeline.Orchestrator, cfg config.Server, checks map[string]Checker) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		orch:    orch,
		checks:  checks,
		config:  cfg,
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	port := cfg.Port
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, port),
		Handler:      s.router,
		ReadTimeout:  config.ParseDuration(cfg.ReadTimeout, DefaultReadTimeout),
		WriteTimeout: config.ParseDuration(cfg.WriteTimeout, DefaultWriteTimeout),
	}
	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	// Model calls are slow; the request timeout sits just under the write timeout
	s.router.Use(middleware.Timeout(config.ParseDuration(s.config.RequestTimeout, DefaultRequestTimeout)))

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.router.Use(jsonHeaders)
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/content-types", s.handleContentTypes)
		r.Get("/colleges", s.handleSearchColleges)
		r.Post("/extract", s.handleExtract)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)

				r.Post("/fetch", s.handleFetch)
				r.Post("/csv", s.handleImportCSV)
				r.Post("/trends", s.handleTrends)
				r.Put("/keywords", s.handleKeywords)

				r.Post("/topics", s.handleGenerateTopics)
				r.Post("/topics/refine", s.handleRefineTopic)
				r.Post("/topics/select", s.handleSelectTopic)

				r.Post("/prompts", s.handleGeneratePrompts)
				r.Post("/prompts/refine", s.handleRefinePrompt)
				r.Post("/prompt", s.handleDefinePrompt)

				r.Post("/outline", s.handleBuildOutline)
				r.Put("/outline", s.handleEditOutline)
				r.Post("/outline/refine", s.handleRefineOutline)
				r.Post("/outline/approve", s.handleApproveOutline)

				r.Post("/content", s.handleGenerateContent)
				r.Put("/content", s.handleEditContent)
				r.Post("/content/regenerate", s.handleRegenerateContent)
				r.Post("/content/section", s.handleRegenerateSection)
				r.Post("/content/seo", s.handleEnhanceSEO)

				r.Post("/confirm", s.handleConfirm)
				r.Post("/restart", s.handleRestart)
			})
		})
	})
}

// Start starts the HTTP server and the idle session sweeper
func (s *Server) Start(ctx context.Context) error {
	logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout.String(),
		"write_timeout", s.httpServer.WriteTimeout.String(),
	)
	go s.orch.Sessions().Run(ctx)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server gracefully...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

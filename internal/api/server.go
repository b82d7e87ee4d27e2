package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/overlay"
	"github.com/opensource-finance/merlin/internal/pipeline"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *pipeline.Engine, overlayEngine *overlay.Engine, policy domain.PolicyConfig, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, overlayEngine, policy, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Underwriting
		r.Post("/underwrite", handler.Underwrite)

		// Evaluation retrieval
		r.Get("/evaluations", handler.ListEvaluations)
		r.Get("/evaluations/{id}", handler.GetEvaluation)

		// Application retrieval
		r.Get("/applications/{id}", handler.GetApplication)

		// Policy management
		r.Get("/policy", handler.GetPolicy)
		r.Put("/policy", handler.PutPolicy)

		// Overlay rule management
		r.Get("/overlay-rules", handler.ListOverlayRules)
		r.Get("/overlay-rules/{id}", handler.GetOverlayRule)
		r.Post("/overlay-rules", handler.CreateOverlayRule)
		r.Delete("/overlay-rules/{id}", handler.DeleteOverlayRule)
		r.Post("/overlay-rules/reload", handler.ReloadOverlayRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

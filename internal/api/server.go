// Package api serves the status endpoints of watch mode.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
)

// ModuleSource provides the latest run of every module.
type ModuleSource interface {
	List() []eventstore.ModuleSummary
	Get(module string) (eventstore.ModuleSummary, bool)
}

// Server represents the status server.
type Server struct {
	Addr     string
	router   *chi.Mux
	server   *http.Server
	modules  ModuleSource
	registry *prom.Registry
}

// NewServer creates a new status server. reg may be nil to serve the
// default Prometheus registry.
func NewServer(addr string, modules ModuleSource, reg *prom.Registry) *Server {
	s := &Server{
		Addr:     addr,
		router:   chi.NewRouter(),
		modules:  modules,
		registry: reg,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.registry))
	s.router.Get("/modules", s.handleListModules)
	s.router.Get("/modules/*", s.handleGetModule)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	if s.modules == nil {
		s.Success(w, http.StatusOK, []eventstore.ModuleSummary{})
		return
	}
	s.Success(w, http.StatusOK, s.modules.List())
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		s.Error(w, http.StatusBadRequest, "module id is required")
		return
	}
	if s.modules == nil {
		s.Error(w, http.StatusNotFound, "module not found")
		return
	}
	summary, ok := s.modules.Get(id)
	if !ok {
		s.Error(w, http.StatusNotFound, "module not found")
		return
	}
	s.Success(w, http.StatusOK, summary)
}

// Package api provides the HTTP API server for Momentum Sync.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ducphamhoang/momentum-sync/internal/auth"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
	"github.com/ducphamhoang/momentum-sync/internal/storage"
	taskssync "github.com/ducphamhoang/momentum-sync/internal/sync"
)

// defaultUserID identifies the single local user. Requests may override
// it with the X-User-ID header.
const defaultUserID = "local"

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	tasks    *storage.TaskStore
	auth     *auth.Manager
	engine   *taskssync.Engine
	registry *provider.Registry
}

// Config for the server
type Config struct {
	Addr     string
	Tasks    *storage.TaskStore
	Auth     *auth.Manager
	Engine   *taskssync.Engine
	Registry *provider.Registry
}

// New creates a new API server
func New(cfg Config) *Server {
	s := &Server{
		tasks:    cfg.Tasks,
		auth:     cfg.Auth,
		engine:   cfg.Engine,
		registry: cfg.Registry,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{taskID}", s.handleGetTask)
			r.Put("/{taskID}", s.handleUpdateTask)
			r.Delete("/{taskID}", s.handleDeleteTask)
			r.Post("/{taskID}/complete", s.handleCompleteTask)
		})

		// OAuth connections
		r.Route("/auth", func(r chi.Router) {
			r.Get("/callback", s.handleOAuthCallback)
			r.Get("/{provider}/url", s.handleAuthURL)
			r.Get("/{provider}/status", s.handleAuthStatus)
			r.Delete("/{provider}", s.handleDisconnect)
		})

		// Sync
		r.Post("/sync/{provider}", s.handleSync)
	})

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

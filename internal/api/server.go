// Package api exposes the HTTP surface: document upload and lifecycle,
// retrieval, and service stats. Uploads are accepted asynchronously;
// clients poll the document until it reaches a terminal status.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/studydesk/studydesk/internal/cleanup"
	"github.com/studydesk/studydesk/internal/config"
	"github.com/studydesk/studydesk/internal/pipeline"
	"github.com/studydesk/studydesk/internal/retrieval"
	"github.com/studydesk/studydesk/internal/store"
)

// Server is the HTTP API server for studydesk.
type Server struct {
	router  chi.Router
	store   store.Store
	runner  *pipeline.Runner
	engine  *retrieval.Engine
	cleaner *cleanup.Client // nil when cleanup is not configured
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(st store.Store, runner *pipeline.Runner, engine *retrieval.Engine, cleaner *cleanup.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:   st,
		runner:  runner,
		engine:  engine,
		cleaner: cleaner,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/healthz", s.handleHealth)

	// API endpoints, authenticated when a token is configured.
	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.APIToken != "" {
			r.Use(AuthMiddleware(s.cfg.APIToken, s.log))
		}

		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{documentID}", s.handleGetDocument)
		r.Delete("/documents/{documentID}", s.handleDeleteDocument)
		r.Post("/documents/{documentID}/reingest", s.handleReingest)

		r.Post("/retrieve", s.handleRetrieve)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

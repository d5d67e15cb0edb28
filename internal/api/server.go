package api

import (
	"log/slog"
	"net/http"

	"docvar/internal/config"
	"docvar/internal/extract"
	"docvar/internal/job"
	"docvar/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docvar.
type Server struct {
	router chi.Router
	store  *job.Store
	runner *pipeline.Runner
	llm    *extract.Client
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(store *job.Store, runner *pipeline.Runner, llm *extract.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:  store,
		runner: runner,
		llm:    llm,
		log:    log,
		cfg:    cfg,
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
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/jobs", s.handleJobsByUser)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Post("/api/jobs/{jobID}/cancel", s.handleCancel)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

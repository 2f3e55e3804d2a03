package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/kbchat/internal/config"
	"github.com/dgallion1/kbchat/internal/pipeline"
	"github.com/dgallion1/kbchat/internal/reply"
)

// Server is the HTTP API server for kbchat.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	reply    *reply.Client
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(p *pipeline.Pipeline, rc *reply.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pipeline: p,
		reply:    rc,
		log:      log,
		cfg:      cfg,
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
	r.Get("/knowledge_base/*", s.handleKnowledgeBase)

	r.Get("/api/kb/files", s.handleListFiles)
	r.Get("/api/kb/files/{name}", s.handleGetFile)
	r.Get("/api/kb/status", s.handleStatus)
	r.Get("/api/kb/runs", s.handleListRuns)
	r.Get("/api/kb/runs/{runID}", s.handleGetRun)

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/stats/reply", s.handleReplyStats)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AdminAPIKey, s.log))

		r.Post("/api/kb/rebuild", s.handleRebuild)
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

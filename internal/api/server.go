// Package api implements C7: the HTTP surface — auth endpoints, project
// CRUD and lifecycle actions, and the internal-only token-validation
// endpoint the terminal proxy calls (§4.7).
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/auth"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/orchestrator"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

type Server struct {
	auth             *auth.Service
	store            *store.Store
	orch             *orchestrator.Orchestrator
	log              *log.Logger
	termProxyBaseURL string // e.g. "wss://sandbox.example.com:8081" (§4.7 terminal URL synthesis)
}

func New(authSvc *auth.Service, st *store.Store, orch *orchestrator.Orchestrator, termProxyBaseURL string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "pomodex-api ", log.LstdFlags|log.LUTC)
	}
	return &Server{auth: authSvc, store: st, orch: orch, termProxyBaseURL: termProxyBaseURL, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)
		r.Post("/projects/{id}/stop", s.handleStopProject)
		r.Post("/projects/{id}/start", s.handleStartProject)
		r.Post("/projects/{id}/snapshot", s.handleStopProject)
		r.Post("/projects/{id}/restore", s.handleStartProject)
		r.Get("/projects/{id}/backup-status", s.handleBackupStatus)
	})

	// The localhost-only check runs before any handler on this path (only
	// the router-wide logging and recovery middleware wrap it), so
	// internal routes are invisible to any non-loopback peer (§4.7,
	// §9 "Middleware chains").
	r.Route("/internal", func(r chi.Router) {
		r.Use(requireLoopback)
		r.Post("/validate", s.handleInternalValidate)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorEnvelope{Error: reason})
}

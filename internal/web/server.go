package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/poller"
)

// Server exposes the poll controller over a small localhost JSON API.
type Server struct {
	controller *poller.Controller
	auth       *TokenAuth
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the status API server.
func NewServer(controller *poller.Controller, auth *TokenAuth, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		controller: controller,
		auth:       auth,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.auth.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/refresh", s.handleRefresh)

	return r
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return "http://" + s.httpServer.Addr
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Status API listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status api: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	State    poller.State  `json:"state"`
	Snapshot *api.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{State: s.controller.State()}
	if snapshot, ok := s.controller.LastSnapshot(); ok {
		resp.Snapshot = &snapshot
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot := s.controller.RefreshNow(r.Context())
	s.writeJSON(w, http.StatusOK, statusResponse{
		State:    s.controller.State(),
		Snapshot: &snapshot,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

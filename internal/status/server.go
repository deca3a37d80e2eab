package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// QueryFunc obtains a snapshot from the runner's event loop. Implementations
// must be safe to call from HTTP handler goroutines.
type QueryFunc func(ctx context.Context) (Snapshot, error)

// Server serves the status API.
type Server struct {
	query  QueryFunc
	router *chi.Mux
	logger *slog.Logger
}

// NewServer creates the status HTTP server.
func NewServer(query QueryFunc, logger *slog.Logger) *Server {
	s := &Server{
		query:  query,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Second))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/api/v1/status", s.handleStatus)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleStatus returns the JSON snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.query(r.Context())
	if err != nil {
		s.logger.Error("status query failed", "error", err)
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Error("failed to encode status", "error", err)
	}
}

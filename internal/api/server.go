// ABOUTME: HTTP server struct and handler wiring for the queuectl serve mode.
// ABOUTME: Thin projections over the store; no state-machine logic lives here.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scarson/queuectl/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store *store.Store
}

// NewServer creates a Server backed by s.
func NewServer(s *store.Store) *Server {
	return &Server{store: s}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// Payloads are single shell commands; 64 KB is generous.
	r.Use(middleware.RequestSize(64 << 10))
	r.Use(middleware.Recoverer)

	// ── Infrastructure endpoints ──────────────────────────────────────────────
	r.Get("/healthz", srv.healthzHandler)
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", srv.enqueueHandler)
		r.Get("/jobs", srv.listJobsHandler)
		r.Get("/jobs/{id}", srv.getJobHandler)
		r.Get("/stats", srv.statsHandler)
		r.Post("/dlq/{id}/retry", srv.dlqRetryHandler)
		r.Get("/config/{key}", srv.getConfigHandler)
		r.Put("/config/{key}", srv.setConfigHandler)
	})

	return r
}

// healthzHandler reports liveness and database reachability.
func (srv *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.store.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

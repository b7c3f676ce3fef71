// ABOUTME: HTTP handlers for job submission, listing, stats, DLQ retry, and
// ABOUTME: config. Maps store error kinds to status codes: 400/404/409.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scarson/queuectl/internal/store"
)

// enqueueResponseBody is the JSON response body for POST /api/v1/jobs.
type enqueueResponseBody struct {
	ID    string      `json:"id"`
	State store.State `json:"state"`
}

// statsResponseBody is the JSON response body for GET /api/v1/stats.
type statsResponseBody struct {
	Jobs map[store.State]int `json:"jobs"`
}

// configBody is the JSON body for GET and PUT /api/v1/config/{key}.
type configBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// enqueueHandler handles POST /api/v1/jobs.
func (srv *Server) enqueueHandler(w http.ResponseWriter, r *http.Request) {
	var params store.EnqueueParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := srv.store.EnqueueJob(r.Context(), params)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrDuplicateID):
		http.Error(w, "job id already exists", http.StatusConflict)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "enqueue job", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, enqueueResponseBody{ID: job.ID, State: job.State})
}

// listJobsHandler handles GET /api/v1/jobs?state=&limit=.
func (srv *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	state := store.State(r.URL.Query().Get("state"))
	if state != "" && !state.Valid() {
		http.Error(w, "unknown state", http.StatusBadRequest)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	jobs, err := srv.store.ListJobs(r.Context(), state, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "list jobs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// getJobHandler handles GET /api/v1/jobs/{id}.
func (srv *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := srv.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.ErrorContext(r.Context(), "get job", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// statsHandler handles GET /api/v1/stats.
func (srv *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := srv.store.Stats(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "job stats", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statsResponseBody{Jobs: stats})
}

// dlqRetryHandler handles POST /api/v1/dlq/{id}/retry. Succeeds only for
// jobs currently in the dead state.
func (srv *Server) dlqRetryHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := srv.store.RetryDead(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "no dead job with that id", http.StatusNotFound)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "dlq retry", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, enqueueResponseBody{ID: id, State: store.StatePending})
}

// getConfigHandler handles GET /api/v1/config/{key}.
func (srv *Server) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := srv.store.GetValue(r.Context(), key, "")
	if err != nil {
		slog.ErrorContext(r.Context(), "get config", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configBody{Key: key, Value: value})
}

// setConfigHandler handles PUT /api/v1/config/{key}.
func (srv *Server) setConfigHandler(w http.ResponseWriter, r *http.Request) {
	var body configBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	key := chi.URLParam(r, "key")
	if err := srv.store.SetValue(r.Context(), key, body.Value); err != nil {
		slog.ErrorContext(r.Context(), "set config", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configBody{Key: key, Value: body.Value})
}

// ABOUTME: HTTP handler tests: error-kind to status-code mapping (400/404/409)
// ABOUTME: and the read-only projections, against a real temp store.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarson/queuectl/internal/api"
	"github.com/scarson/queuectl/internal/store"
	"github.com/scarson/queuectl/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s := testutil.NewTestDB(t)
	ts := httptest.NewServer(api.NewServer(s).Handler())
	t.Cleanup(ts.Close)
	return ts, s
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEnqueueEndpoint(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/jobs", `{"id":"j1","command":"echo hi","max_retries":2,"priority":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "j1", body.ID)
	assert.Equal(t, "pending", body.State)

	// Missing command → InvalidInput → 400.
	resp = postJSON(t, ts.URL+"/api/v1/jobs", `{"id":"j2"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed JSON → 400.
	resp = postJSON(t, ts.URL+"/api/v1/jobs", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Duplicate id → Conflict → 409.
	resp = postJSON(t, ts.URL+"/api/v1/jobs", `{"id":"j1","command":"echo again"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetAndListJobs(t *testing.T) {
	t.Parallel()
	ts, s := newTestServer(t)

	_, err := s.EnqueueJob(context.Background(), store.EnqueueParams{ID: "j1", Command: "true"})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/j1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/jobs/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/jobs?state=pending")
	require.NoError(t, err)
	defer resp.Body.Close()
	var jobs []store.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ID)

	resp, err = http.Get(ts.URL + "/api/v1/jobs?state=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDLQRetryEndpoint(t *testing.T) {
	t.Parallel()
	ts, s := newTestServer(t)
	ctx := context.Background()

	_, err := s.EnqueueJob(ctx, store.EnqueueParams{ID: "d1", Command: "false"})
	require.NoError(t, err)
	_, err = s.Claim(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.RecordOutcome(ctx, "d1", store.StateDead, time.Now().Unix(), 1))

	resp := postJSON(t, ts.URL+"/api/v1/dlq/d1/retry", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	j, err := s.GetJob(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, store.StatePending, j.State)
	assert.Zero(t, j.Attempts)

	// Now pending, so a second retry is NotFound.
	resp = postJSON(t, ts.URL+"/api/v1/dlq/d1/retry", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	ts, s := newTestServer(t)

	_, err := s.EnqueueJob(context.Background(), store.EnqueueParams{ID: "j1", Command: "true"})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jobs map[store.State]int `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Jobs[store.StatePending])
	assert.Equal(t, 0, body.Jobs[store.StateDead])
}

func TestConfigEndpoints(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/config/backoff_base",
		strings.NewReader(`{"value":"3"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/config/backoff_base")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "3", body.Value)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

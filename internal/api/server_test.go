// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fl4pj4ck/jellytrailers/internal/metrics"
	"github.com/fl4pj4ck/jellytrailers/internal/services/trailers"
	"github.com/fl4pj4ck/jellytrailers/internal/stats"
	"github.com/fl4pj4ck/jellytrailers/internal/ytdlp"
)

func testDeps(t *testing.T) *Dependencies {
	t.Helper()
	return &Dependencies{
		Trailers: &trailers.Service{},
		Stats:    stats.NewStore(filepath.Join(t.TempDir(), "stats.json")),
		YtDlp:    &ytdlp.Adapter{},
		Metrics:  metrics.NewManager(),
	}
}

func TestRoutesRegistered(t *testing.T) {
	t.Parallel()

	server := NewServer(testDeps(t))
	router := server.Handler()

	got := map[string]bool{}
	walkFunc := func(method string, path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		got[method+" "+path] = true
		return nil
	}
	require.NoError(t, chi.Walk(router.(chi.Routes), walkFunc))

	expected := []string{
		"GET /api/health/liveness",
		"GET /api/health/readiness",
		"GET /api/stats/",
		"POST /api/stats/reset",
		"POST /api/run",
		"GET /api/ytdlp/status",
		"GET /api/version",
		"GET /healthz",
		"GET /metrics",
	}
	for _, route := range expected {
		assert.True(t, got[route], "missing route %s", route)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	deps.Stats.RecordRun(3, 1)
	deps.Stats.RecordFolderCounts(10, 4)

	server := NewServer(deps)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary stats.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 4, summary.TotalDownloaded, "display floor lifts total to folders with trailer")
	assert.Equal(t, 1, summary.TotalFailed)
	assert.Equal(t, 10, summary.TotalFolders)
}

func TestStatsResetEndpoint(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	deps.Stats.RecordRun(5, 2)

	server := NewServer(deps)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/stats/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary stats.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Zero(t, summary.TotalFailed)
	assert.Zero(t, summary.Last365Days)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server := NewServer(testDeps(t))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for path, status := range map[string]string{
		"/api/health/liveness":  "alive",
		"/api/health/readiness": "ready",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, status, body["status"])
	}
}

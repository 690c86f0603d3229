// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony31416/codeguard-test/services/analysis"
	"github.com/rony31416/codeguard-test/services/analysis/cascade"
	"github.com/rony31416/codeguard-test/services/analysis/routes"
	"github.com/rony31416/codeguard-test/services/analysis/sandbox"
)

func newTestRouter(t *testing.T) (*gin.Engine, *analysis.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	exec := sandbox.NewExecutor(sandbox.Config{
		DisableDocker: true,
		PythonBin:     "definitely-not-a-python",
	}, nil)
	svc := analysis.NewService(exec, cascade.NewAnalyzer(nil, nil), nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	router := gin.New()
	routes.SetupRoutes(router, svc, nil, routes.Options{
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
	})
	return router, svc
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyze_Accepted(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/analyze",
		`{"prompt": "add two numbers", "code": "def add(a, b):\n    return a + b"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		AnalysisID  string          `json:"analysis_id"`
		Status      string          `json:"status"`
		BugPatterns json.RawMessage `json:"bug_patterns"`
		HasBugs     bool            `json:"has_bugs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Equal(t, "processing", resp.Status)
	assert.NotEqual(t, "null", string(resp.BugPatterns))
}

func TestAnalyze_BindingFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{
		`{"prompt": "only a prompt"}`,
		`{"code": "x = 1"}`,
		`not json`,
	} {
		w := doJSON(router, http.MethodPost, "/api/analyze", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), "invalid_request")
	}
}

func TestAnalyze_CodeTooLarge(t *testing.T) {
	router, _ := newTestRouter(t)

	big := strings.Repeat("x = 1\n", 10000)
	body, err := json.Marshal(map[string]string{"prompt": "p", "code": big})
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, "/api/analyze", string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetAnalysis_PollUntilComplete(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/analyze",
		`{"prompt": "add two numbers", "code": "print(a + b)"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		AnalysisID string `json:"analysis_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	var final struct {
		Status     string          `json:"status"`
		Linguistic json.RawMessage `json:"linguistic_analysis"`
		Summary    string          `json:"summary"`
	}
	require.Eventually(t, func() bool {
		poll := doJSON(router, http.MethodGet, "/api/analysis/"+accepted.AnalysisID, "")
		require.Equal(t, http.StatusOK, poll.Code)
		require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &final))
		return final.Status == "complete"
	}, 10*time.Second, 20*time.Millisecond)

	assert.NotEmpty(t, final.Linguistic)
	assert.NotEmpty(t, final.Summary)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/analysis/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestListPatterns(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/patterns", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Patterns []struct {
			Name          string `json:"name"`
			Stage         string `json:"stage"`
			SeverityRange string `json:"severity_range"`
		} `json:"patterns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Patterns, 10)
}

func TestHealthAndReady(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(router, http.MethodPost, "/api/analyze", `{"prompt": "p", "code": "x = 1"}`)

	w := doJSON(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codeguard_analyses_started_total")
}

func TestRequestIDEchoed(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

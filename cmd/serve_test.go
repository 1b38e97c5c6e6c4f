package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/pipeline"
)

func stubRunner(m *model.RunManifest, err error) runnerFunc {
	return func(ctx context.Context, runCfg model.RunConfig) (*model.RunManifest, error) {
		return m, err
	}
}

func successManifest() *model.RunManifest {
	return &model.RunManifest{
		RunID:         "run_20240301_120000",
		OverallStatus: model.RunStatusSuccess,
	}
}

func postRun(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newRouter(stubRunner(nil, nil), "out", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestRouter_Root(t *testing.T) {
	h := newRouter(stubRunner(nil, nil), "out", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "expo-cli", body["service"])

	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestRouter_CORS(t *testing.T) {
	h := newRouter(stubRunner(nil, nil), "out", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleRun_InvalidBody(t *testing.T) {
	h := newRouter(stubRunner(successManifest(), nil), "out", time.Minute)

	rr := postRun(t, h, "{not json")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestHandleRun_MissingSourceURL(t *testing.T) {
	h := newRouter(stubRunner(successManifest(), nil), "out", time.Minute)

	rr := postRun(t, h, `{"source_url":""}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source_url")
}

func TestHandleRun_RejectsNonHTTPSourceURL(t *testing.T) {
	h := newRouter(stubRunner(successManifest(), nil), "out", time.Minute)

	rr := postRun(t, h, `{"source_url":"ftp://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRun_PassesSourceURL(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, pipeline.EnrichedCSV)
	require.NoError(t, os.WriteFile(csvPath, []byte("company_name\nAcme\n"), 0o644))

	var got model.RunConfig
	runner := func(ctx context.Context, runCfg model.RunConfig) (*model.RunManifest, error) {
		got = runCfg
		return successManifest(), nil
	}
	h := newRouter(runner, dir, time.Minute)

	rr := postRun(t, h, `{"source_url":"https://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://expo.example.com/exhibitors", got.SourceURL)
	assert.Empty(t, got.SkipSteps)
	assert.False(t, got.Resume)
}

func TestHandleRun_StreamsEnrichedCSV(t *testing.T) {
	dir := t.TempDir()
	content := "company_name,domain,fit_bucket\nAcme Graphics,acme.com,YES\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, pipeline.EnrichedCSV), []byte(content), 0o644))

	h := newRouter(stubRunner(successManifest(), nil), dir, time.Minute)

	rr := postRun(t, h, `{"source_url":"https://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), pipeline.EnrichedCSV)
	assert.Equal(t, content, rr.Body.String())
}

func TestHandleRun_RunFailure(t *testing.T) {
	h := newRouter(stubRunner(nil, eris.New("scrape stage: boom")), "out", time.Minute)

	rr := postRun(t, h, `{"source_url":"https://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "pipeline run failed", body["error"])
}

func TestHandleRun_Timeout(t *testing.T) {
	h := newRouter(stubRunner(nil, context.DeadlineExceeded), "out", 2*time.Second)

	rr := postRun(t, h, `{"source_url":"https://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "pipeline run timed out", body["error"])
	assert.Equal(t, float64(2), body["timeout_seconds"])
}

func TestHandleRun_OutputMissing(t *testing.T) {
	// A run that skipped enrichment leaves no CSV behind.
	dir := t.TempDir()
	h := newRouter(stubRunner(successManifest(), nil), dir, time.Minute)

	rr := postRun(t, h, `{"source_url":"https://expo.example.com/exhibitors"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "output file not generated", body["error"])
	assert.Contains(t, body["expected_path"], pipeline.EnrichedCSV)
}

func TestValidSourceURL(t *testing.T) {
	valid := []string{
		"https://expo.example.com/exhibitors",
		"http://expo.example.com",
	}
	for _, u := range valid {
		assert.True(t, validSourceURL(u), u)
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://expo.example.com",
		"https://",
		"/exhibitors",
	}
	for _, u := range invalid {
		assert.False(t, validSourceURL(u), u)
	}
}

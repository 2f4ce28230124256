package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/gammon-mcp/internal/health"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
)

func startServer(t *testing.T, checker *health.Checker) *HTTPServer {
	t.Helper()
	srv := NewHTTPServer("127.0.0.1:0", logging.Discard(), checker)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func get(t *testing.T, srv *HTTPServer, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get("http://" + srv.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestNewHTTPServer(t *testing.T) {
	checker := health.NewChecker(logging.Discard(), "1.0.0", "abc123")
	srv := NewHTTPServer(":8080", logging.Discard(), checker)
	assert.Equal(t, ":8080", srv.Addr())
}

func TestStartReportsBindError(t *testing.T) {
	checker := health.NewChecker(logging.Discard(), "1.0.0", "")
	first := startServer(t, checker)

	second := NewHTTPServer(first.Addr(), logging.Discard(), checker)
	assert.Error(t, second.Start())
}

func TestHealthEndpoints(t *testing.T) {
	checker := health.NewChecker(logging.Discard(), "1.0.0", "abc123")
	checker.RegisterCheck("codecs", health.CodecCheck())
	srv := startServer(t, checker)

	resp, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var live health.Response
	require.NoError(t, json.Unmarshal(body, &live))
	assert.Equal(t, health.StatusHealthy, live.Status)

	resp, body = get(t, srv, "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready health.Response
	require.NoError(t, json.Unmarshal(body, &ready))
	require.Len(t, ready.Components, 1)
	assert.Equal(t, "codecs", ready.Components[0].Name)
}

func TestReadyUnhealthy(t *testing.T) {
	checker := health.NewChecker(logging.Discard(), "1.0.0", "")
	checker.RegisterCheck("store", func(ctx context.Context) error { return errors.New("closed") })
	srv := startServer(t, checker)

	resp, _ := get(t, srv, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	checker := health.NewChecker(logging.Discard(), "1.0.0", "")
	srv := startServer(t, checker)

	get(t, srv, "/health")
	resp, body := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "gammon_mcp_http_requests_total"))
}

func TestPrometheusMiddlewareKeepsFirstStatus(t *testing.T) {
	handler := PrometheusMiddleware(metrics.NewPrometheusCollector())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/some/random/path", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	_, err := w.Write([]byte("ok"))
	require.NoError(t, err)
	w.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, w.statusCode)
}

func TestPathLabel(t *testing.T) {
	for path, want := range map[string]string{
		"/health":      "/health",
		"/ready":       "/ready",
		"/metrics":     "/metrics",
		"/":            "other",
		"/admin/debug": "other",
	} {
		assert.Equal(t, want, pathLabel(path), path)
	}
}

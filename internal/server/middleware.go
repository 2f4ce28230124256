package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmmcquay/gammon-mcp/internal/metrics"
)

// knownPaths bounds the cardinality of the path label.
var knownPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

func PrometheusMiddleware(collector *metrics.PrometheusCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			collector.RecordHTTPRequest(r.Method, pathLabel(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start).Seconds())
		})
	}
}

func pathLabel(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

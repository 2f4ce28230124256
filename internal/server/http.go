package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmmcquay/gammon-mcp/internal/health"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
)

// HTTPServer serves /health, /ready and /metrics next to the stdio MCP
// transport.
type HTTPServer struct {
	server     *http.Server
	listener   net.Listener
	logger     logging.ContextLogger
	checker    *health.Checker
	prometheus *metrics.PrometheusCollector
}

func NewHTTPServer(addr string, logger logging.ContextLogger, checker *health.Checker) *HTTPServer {
	prometheus := metrics.NewPrometheusCollector()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.Handle("/metrics", promhttp.Handler())

	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           PrometheusMiddleware(prometheus)(mux),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:     logger,
		checker:    checker,
		prometheus: prometheus,
	}
}

// Start binds the listener synchronously so address errors are returned to
// the caller, then serves in the background.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("Starting HTTP health check server", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err.Error())
		}
	}()
	return nil
}

// Addr is the bound address, useful when started on port 0.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP health check server")
	return s.server.Shutdown(ctx)
}

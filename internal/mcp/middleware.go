package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
	"github.com/dmmcquay/gammon-mcp/internal/ratelimit"
)

// Middleware adds request IDs, logging, rate limiting and metrics to every
// tool handler.
type Middleware struct {
	logger      logging.ContextLogger
	metrics     *metrics.Collector
	prometheus  *metrics.PrometheusCollector
	rateLimiter *ratelimit.Limiter
}

func NewMiddleware(logger logging.ContextLogger, collector *metrics.Collector, prom *metrics.PrometheusCollector, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		metrics:     collector,
		prometheus:  prom,
		rateLimiter: rateLimiter,
	}
}

type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
		ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
		ctx = logging.ContextWithTool(ctx, toolName)
		logger := m.logger.WithContext(ctx)

		clientID := extractClientID(ctx, request)
		logger.Info("Tool request received", "client", clientID)

		if m.rateLimiter != nil {
			allowed, err := m.rateLimiter.Allow(clientID, toolName)
			m.recordRateLimit(clientID, toolName, !allowed)
			if !allowed {
				logger.Warn("Rate limit exceeded", "client", clientID, "error", err.Error())
				m.record(toolName, "rate_limited", time.Since(start))
				return nil, fmt.Errorf("tool %s: %w", toolName, err)
			}
		}

		result, err := handler(ctx, request)
		elapsed := time.Since(start)

		status := "success"
		switch {
		case err != nil:
			status = "error"
			logger.Error("Tool request failed", "client", clientID, "error", err.Error(), "duration", elapsed.String())
		case result != nil && result.IsError:
			status = "error"
			logger.Warn("Tool request rejected", "client", clientID, "duration", elapsed.String())
		default:
			logger.Info("Tool request completed", "client", clientID, "duration", elapsed.String())
		}
		m.record(toolName, status, elapsed)

		return result, err
	}
}

func (m *Middleware) record(tool, status string, d time.Duration) {
	if m.metrics != nil {
		m.metrics.RecordToolCall(tool, status, d)
	}
	if m.prometheus != nil {
		m.prometheus.RecordToolCall(tool, status, d.Seconds())
	}
}

func (m *Middleware) recordRateLimit(client, tool string, hit bool) {
	if m.prometheus != nil {
		m.prometheus.RecordRateLimit(client, tool, hit)
	}
}

// extractClientID prefers the MCP session, then a clientID argument.
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		if id := session.SessionID(); id != "" {
			return id
		}
	}

	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if id, ok := args["clientID"].(string); ok && id != "" {
			return id
		}
	}

	return "anonymous"
}

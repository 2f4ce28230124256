package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOnce     sync.Once
	prometheusInstance *PrometheusCollector
)

// Outcome labels shared by the decode and parse counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// PrometheusCollector holds the process-wide Prometheus series. It is a
// singleton because promauto registers with the default registry.
type PrometheusCollector struct {
	toolCallsTotal   *prometheus.CounterVec
	toolErrorsTotal  *prometheus.CounterVec
	toolDurationSecs *prometheus.HistogramVec

	rateLimitHitsTotal   *prometheus.CounterVec
	rateLimitChecksTotal prometheus.Counter

	positionDecodesTotal *prometheus.CounterVec
	archiveParsesTotal   *prometheus.CounterVec
	archiveParseSecs     prometheus.Histogram
	archiveBytes         prometheus.Histogram
	gamesParsedTotal     prometheus.Counter
	matchesStoredTotal   prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	cacheSize        prometheus.Gauge
	cacheItems       prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	prometheusOnce.Do(func() {
		prometheusInstance = &PrometheusCollector{
			toolCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_mcp_tool_calls_total",
					Help: "Total number of MCP tool calls",
				},
				[]string{"tool", "status"},
			),
			toolErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_mcp_tool_errors_total",
					Help: "Total number of MCP tool errors",
				},
				[]string{"tool", "error_type"},
			),
			toolDurationSecs: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gammon_mcp_tool_duration_seconds",
					Help:    "Duration of MCP tool calls in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),

			rateLimitHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_mcp_rate_limit_hits_total",
					Help: "Total number of rate limit hits",
				},
				[]string{"client", "tool"},
			),
			rateLimitChecksTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "gammon_mcp_rate_limit_checks_total",
					Help: "Total number of rate limit checks",
				},
			),

			positionDecodesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_position_decodes_total",
					Help: "Position IDs decoded, by format and outcome",
				},
				[]string{"format", "outcome"},
			),
			archiveParsesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_archive_parses_total",
					Help: "XG archives parsed, by outcome",
				},
				[]string{"outcome"},
			),
			archiveParseSecs: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "gammon_archive_parse_duration_seconds",
					Help:    "Time to unpack and parse an XG archive",
					Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
				},
			),
			archiveBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "gammon_archive_bytes",
					Help:    "Size of XG archives submitted for parsing",
					Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
				},
			),
			gamesParsedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "gammon_games_parsed_total",
					Help: "Games recovered from parsed archives",
				},
			),
			matchesStoredTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "gammon_matches_stored_total",
					Help: "Converted matches written to the store",
				},
			),

			httpRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gammon_mcp_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			httpRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gammon_mcp_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),

			cacheHitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "gammon_mcp_cache_hits_total",
					Help: "Total number of cache hits",
				},
			),
			cacheMissesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "gammon_mcp_cache_misses_total",
					Help: "Total number of cache misses",
				},
			),
			cacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "gammon_mcp_cache_size_bytes",
					Help: "Current cache size in bytes",
				},
			),
			cacheItems: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "gammon_mcp_cache_items",
					Help: "Current number of items in cache",
				},
			),
		}
	})
	return prometheusInstance
}

func (p *PrometheusCollector) RecordToolCall(tool, status string, durationSecs float64) {
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolDurationSecs.WithLabelValues(tool).Observe(durationSecs)

	if status == "error" {
		p.toolErrorsTotal.WithLabelValues(tool, "general").Inc()
	}
}

// RecordToolError counts an error with a specific type, e.g. the sentinel
// that caused a conversion to fail.
func (p *PrometheusCollector) RecordToolError(tool, errorType string) {
	p.toolErrorsTotal.WithLabelValues(tool, errorType).Inc()
}

func (p *PrometheusCollector) RecordRateLimit(client, tool string, hit bool) {
	p.rateLimitChecksTotal.Inc()
	if hit {
		p.rateLimitHitsTotal.WithLabelValues(client, tool).Inc()
	}
}

func (p *PrometheusCollector) RecordPositionDecode(format, outcome string) {
	p.positionDecodesTotal.WithLabelValues(format, outcome).Inc()
}

// RecordArchiveParse records one archive parse. games is ignored on error.
func (p *PrometheusCollector) RecordArchiveParse(sizeBytes int, games int, durationSecs float64, err error) {
	p.archiveBytes.Observe(float64(sizeBytes))
	p.archiveParseSecs.Observe(durationSecs)
	if err != nil {
		p.archiveParsesTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	p.archiveParsesTotal.WithLabelValues(OutcomeOK).Inc()
	p.gamesParsedTotal.Add(float64(games))
}

func (p *PrometheusCollector) RecordMatchStored() {
	p.matchesStoredTotal.Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, path, status string, durationSecs float64) {
	p.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(durationSecs)
}

func (p *PrometheusCollector) RecordCacheHit() {
	p.cacheHitsTotal.Inc()
}

func (p *PrometheusCollector) RecordCacheMiss() {
	p.cacheMissesTotal.Inc()
}

func (p *PrometheusCollector) SetCacheStats(items, sizeBytes float64) {
	p.cacheItems.Set(items)
	p.cacheSize.Set(sizeBytes)
}

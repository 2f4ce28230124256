package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollectorSingleton(t *testing.T) {
	assert.Same(t, NewPrometheusCollector(), NewPrometheusCollector())
}

func TestPrometheusToolCalls(t *testing.T) {
	p := NewPrometheusCollector()
	okBefore := testutil.ToFloat64(p.toolCallsTotal.WithLabelValues("xgToMat", "success"))
	errBefore := testutil.ToFloat64(p.toolErrorsTotal.WithLabelValues("xgToMat", "general"))

	p.RecordToolCall("xgToMat", "success", 0.02)
	p.RecordToolCall("xgToMat", "error", 0.01)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(p.toolCallsTotal.WithLabelValues("xgToMat", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(p.toolErrorsTotal.WithLabelValues("xgToMat", "general")))

	typed := testutil.ToFloat64(p.toolErrorsTotal.WithLabelValues("convertPosition", "malformed_xgid"))
	p.RecordToolError("convertPosition", "malformed_xgid")
	assert.Equal(t, typed+1, testutil.ToFloat64(p.toolErrorsTotal.WithLabelValues("convertPosition", "malformed_xgid")))
}

func TestPrometheusDomainSeries(t *testing.T) {
	p := NewPrometheusCollector()

	decodes := testutil.ToFloat64(p.positionDecodesTotal.WithLabelValues("gnuid", OutcomeOK))
	p.RecordPositionDecode("gnuid", OutcomeOK)
	assert.Equal(t, decodes+1, testutil.ToFloat64(p.positionDecodesTotal.WithLabelValues("gnuid", OutcomeOK)))

	okParses := testutil.ToFloat64(p.archiveParsesTotal.WithLabelValues(OutcomeOK))
	badParses := testutil.ToFloat64(p.archiveParsesTotal.WithLabelValues(OutcomeError))
	games := testutil.ToFloat64(p.gamesParsedTotal)

	p.RecordArchiveParse(40000, 2, 0.003, nil)
	p.RecordArchiveParse(10, 5, 0.001, errors.New("not an archive"))

	assert.Equal(t, okParses+1, testutil.ToFloat64(p.archiveParsesTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, badParses+1, testutil.ToFloat64(p.archiveParsesTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, games+2, testutil.ToFloat64(p.gamesParsedTotal))

	stored := testutil.ToFloat64(p.matchesStoredTotal)
	p.RecordMatchStored()
	assert.Equal(t, stored+1, testutil.ToFloat64(p.matchesStoredTotal))
}

func TestPrometheusCacheAndRateLimit(t *testing.T) {
	p := NewPrometheusCollector()

	hits := testutil.ToFloat64(p.cacheHitsTotal)
	misses := testutil.ToFloat64(p.cacheMissesTotal)
	p.RecordCacheHit()
	p.RecordCacheMiss()
	p.RecordCacheMiss()
	p.SetCacheStats(3, 4096)

	assert.Equal(t, hits+1, testutil.ToFloat64(p.cacheHitsTotal))
	assert.Equal(t, misses+2, testutil.ToFloat64(p.cacheMissesTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(p.cacheItems))
	assert.Equal(t, float64(4096), testutil.ToFloat64(p.cacheSize))

	checks := testutil.ToFloat64(p.rateLimitChecksTotal)
	limited := testutil.ToFloat64(p.rateLimitHitsTotal.WithLabelValues("c1", "pipCount"))
	p.RecordRateLimit("c1", "pipCount", false)
	p.RecordRateLimit("c1", "pipCount", true)
	assert.Equal(t, checks+2, testutil.ToFloat64(p.rateLimitChecksTotal))
	assert.Equal(t, limited+1, testutil.ToFloat64(p.rateLimitHitsTotal.WithLabelValues("c1", "pipCount")))

	reqs := testutil.ToFloat64(p.httpRequestsTotal.WithLabelValues("GET", "/health", "200"))
	p.RecordHTTPRequest("GET", "/health", "200", 0.001)
	assert.Equal(t, reqs+1, testutil.ToFloat64(p.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.RecordToolCall("convertPosition", "success", 10*time.Millisecond)
	c.RecordToolCall("convertPosition", "error", 30*time.Millisecond)
	c.RecordToolCall("pipCount", "rate_limited", 0)
	c.RecordConversion("xgid")
	c.RecordConversion("xgid")

	stats := c.GetStats()
	tools := stats["tools"].(map[string]interface{})
	conv := tools["convertPosition"].(map[string]interface{})
	assert.Equal(t, int64(2), conv["calls"])
	assert.Equal(t, int64(1), conv["errors"])
	assert.Equal(t, 0.5, conv["error_rate"])
	assert.Equal(t, int64(20), conv["avg_duration_ms"])

	rl := stats["rate_limits"].(map[string]interface{})
	assert.Equal(t, int64(1), rl["hits"])
	assert.Equal(t, int64(3), rl["total"])

	assert.Equal(t, int64(2), stats["conversions"].(map[string]int64)["xgid"])

	c.Reset()
	assert.Empty(t, c.GetStats()["tools"])
}

func TestCollectorDurationWindow(t *testing.T) {
	c := NewCollector()
	for i := 0; i < durationWindow+20; i++ {
		c.RecordToolCall("pipCount", "success", time.Millisecond)
	}
	assert.Len(t, c.toolDurations["pipCount"], durationWindow)
}

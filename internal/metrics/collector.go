package metrics

import (
	"sync"
	"time"
)

const durationWindow = 100

// Collector keeps in-process tool stats for the /ready payload and the
// serverStatus tool. Prometheus carries the same events for scraping.
type Collector struct {
	mu sync.RWMutex

	toolCalls     map[string]int64
	toolErrors    map[string]int64
	toolDurations map[string][]time.Duration

	rateLimitHits  int64
	rateLimitTotal int64

	conversions map[string]int64
}

func NewCollector() *Collector {
	return &Collector{
		toolCalls:     make(map[string]int64),
		toolErrors:    make(map[string]int64),
		toolDurations: make(map[string][]time.Duration),
		conversions:   make(map[string]int64),
	}
}

// RecordToolCall records one tool invocation. status is "success", "error"
// or "rate_limited".
func (c *Collector) RecordToolCall(tool, status string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls[tool]++
	c.rateLimitTotal++

	switch status {
	case "error":
		c.toolErrors[tool]++
	case "rate_limited":
		c.rateLimitHits++
	}

	durations := append(c.toolDurations[tool], duration)
	if len(durations) > durationWindow {
		durations = durations[1:]
	}
	c.toolDurations[tool] = durations
}

// RecordConversion counts a position ID decoded from the given format.
func (c *Collector) RecordConversion(format string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversions[format]++
}

func (c *Collector) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	toolStats := make(map[string]interface{}, len(c.toolCalls))
	for tool, calls := range c.toolCalls {
		errors := c.toolErrors[tool]
		errorRate := float64(0)
		if calls > 0 {
			errorRate = float64(errors) / float64(calls)
		}

		var total time.Duration
		durations := c.toolDurations[tool]
		for _, d := range durations {
			total += d
		}
		avg := time.Duration(0)
		if len(durations) > 0 {
			avg = total / time.Duration(len(durations))
		}

		toolStats[tool] = map[string]interface{}{
			"calls":           calls,
			"errors":          errors,
			"error_rate":      errorRate,
			"avg_duration_ms": avg.Milliseconds(),
		}
	}

	rate := float64(0)
	if c.rateLimitTotal > 0 {
		rate = float64(c.rateLimitHits) / float64(c.rateLimitTotal)
	}

	conversions := make(map[string]int64, len(c.conversions))
	for f, n := range c.conversions {
		conversions[f] = n
	}

	return map[string]interface{}{
		"tools": toolStats,
		"rate_limits": map[string]interface{}{
			"hits":  c.rateLimitHits,
			"total": c.rateLimitTotal,
			"rate":  rate,
		},
		"conversions": conversions,
	}
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls = make(map[string]int64)
	c.toolErrors = make(map[string]int64)
	c.toolDurations = make(map[string][]time.Duration)
	c.conversions = make(map[string]int64)
	c.rateLimitHits = 0
	c.rateLimitTotal = 0
}

package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmmcquay/gammon-mcp/internal/config"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
)

// ErrRateLimited is wrapped by every rejection from Allow.
var ErrRateLimited = errors.New("rate limit exceeded")

const (
	cleanupInterval = 5 * time.Minute
	staleTimeout    = 30 * time.Minute
)

// Limiter applies a global, per-tool and per-client token bucket to every
// MCP tool call. A nil *Limiter allows everything.
type Limiter struct {
	logger       logging.ContextLogger
	config       *config.RateLimitConfig
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	clientLimits map[string]*clientRateLimit
	mu           sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

type clientRateLimit struct {
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	lastSeen     time.Time
}

// NewLimiter returns nil when rate limiting is disabled.
func NewLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	l := &Limiter{
		logger:       logger,
		config:       cfg,
		globalBucket: NewTokenBucket(cfg.BurstSize, perSecond(cfg.RequestsPerMin)),
		toolBuckets:  make(map[string]*TokenBucket),
		clientLimits: make(map[string]*clientRateLimit),
		stop:         make(chan struct{}),
	}
	for tool, limit := range cfg.PerToolLimits {
		l.toolBuckets[tool] = l.newToolBucket(limit)
	}

	go l.cleanupStaleClients()
	return l
}

func perSecond(perMinute int) float64 {
	return float64(perMinute) / 60.0
}

// newToolBucket scales the burst by the same ratio as the global limit.
func (l *Limiter) newToolBucket(limit int) *TokenBucket {
	burst := 1
	if l.config.RequestsPerMin > 0 {
		burst = l.config.BurstSize * limit / l.config.RequestsPerMin
	}
	if burst < 1 {
		burst = 1
	}
	return NewTokenBucket(burst, perSecond(limit))
}

// Allow reports whether clientID may call toolName now. On rejection the
// error wraps ErrRateLimited and any tokens already taken are refunded.
func (l *Limiter) Allow(clientID, toolName string) (bool, error) {
	if l == nil {
		return true, nil
	}

	if !l.globalBucket.Allow(1) {
		l.logger.Warn("Global rate limit exceeded", "client", clientID, "tool", toolName)
		return false, fmt.Errorf("global: %w", ErrRateLimited)
	}

	l.mu.RLock()
	toolBucket, hasToolLimit := l.toolBuckets[toolName]
	l.mu.RUnlock()

	if hasToolLimit && !toolBucket.Allow(1) {
		l.globalBucket.Refund(1)
		l.logger.Warn("Tool rate limit exceeded", "client", clientID, "tool", toolName)
		return false, fmt.Errorf("tool %s: %w", toolName, ErrRateLimited)
	}

	if clientID != "" {
		if err := l.checkClientLimit(clientID, toolName); err != nil {
			l.globalBucket.Refund(1)
			if hasToolLimit {
				toolBucket.Refund(1)
			}
			return false, err
		}
	}

	return true, nil
}

func (l *Limiter) checkClientLimit(clientID, toolName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	client, ok := l.clientLimits[clientID]
	if !ok {
		client = &clientRateLimit{
			globalBucket: NewTokenBucket(l.config.BurstSize, perSecond(l.config.RequestsPerMin)),
			toolBuckets:  make(map[string]*TokenBucket),
		}
		l.clientLimits[clientID] = client
	}
	client.lastSeen = time.Now()

	if !client.globalBucket.Allow(1) {
		l.logger.Warn("Client rate limit exceeded", "client", clientID, "tool", toolName)
		return fmt.Errorf("client %s: %w", clientID, ErrRateLimited)
	}

	limit, hasLimit := l.config.PerToolLimits[toolName]
	if !hasLimit {
		return nil
	}
	toolBucket, ok := client.toolBuckets[toolName]
	if !ok {
		toolBucket = l.newToolBucket(limit)
		client.toolBuckets[toolName] = toolBucket
	}
	if !toolBucket.Allow(1) {
		client.globalBucket.Refund(1)
		l.logger.Warn("Client tool rate limit exceeded", "client", clientID, "tool", toolName)
		return fmt.Errorf("client %s tool %s: %w", clientID, toolName, ErrRateLimited)
	}
	return nil
}

// Wait returns how long to wait for a global token.
func (l *Limiter) Wait() time.Duration {
	if l == nil {
		return 0
	}
	return l.globalBucket.Wait(1)
}

func (l *Limiter) Reset() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, b := range l.toolBuckets {
		b.Reset()
	}
	for _, c := range l.clientLimits {
		c.globalBucket.Reset()
		for _, b := range c.toolBuckets {
			b.Reset()
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupStaleClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evictStale(now)
		}
	}
}

func (l *Limiter) evictStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for id, c := range l.clientLimits {
		if now.Sub(c.lastSeen) > staleTimeout {
			delete(l.clientLimits, id)
			evicted++
			l.logger.Debug("Removed stale client rate limit tracking", "client", id)
		}
	}
	return evicted
}

// GetStatus summarizes the limiter for /ready.
func (l *Limiter) GetStatus() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"enabled": false}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	toolLimits := make(map[string]interface{}, len(l.toolBuckets))
	for tool, b := range l.toolBuckets {
		toolLimits[tool] = map[string]interface{}{
			"limit":  l.config.PerToolLimits[tool],
			"tokens": b.Tokens(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"requestsPerMin": l.config.RequestsPerMin,
		"burstSize":      l.config.BurstSize,
		"globalTokens":   l.globalBucket.Tokens(),
		"activeClients":  len(l.clientLimits),
		"toolLimits":     toolLimits,
	}
}

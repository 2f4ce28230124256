package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmmcquay/gammon-mcp/internal/config"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

// Recorder receives cache events. *metrics.PrometheusCollector satisfies it.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	SetCacheStats(items, sizeBytes float64)
}

// Approximate in-memory footprint used for size accounting.
const (
	matchOverhead  = 512
	gameOverhead   = 128
	actionOverhead = 96
)

// Manager caches parsed matches keyed by the SHA-256 of the archive bytes,
// so resubmitting the same .xg file skips unpacking and parsing.
type Manager struct {
	cache    *LRU[*xgmatch.ParsedMatch]
	logger   logging.ContextLogger
	recorder Recorder
	enabled  bool
	ttl      time.Duration
	now      func() time.Time
}

// NewManager returns a disabled manager when cfg is nil or disabled. The
// disabled manager is safe to use and never hits.
func NewManager(cfg *config.CacheConfig, logger logging.ContextLogger, recorder Recorder) *Manager {
	m := &Manager{logger: logger, recorder: recorder, now: time.Now}
	if cfg == nil || !cfg.Enabled {
		return m
	}

	m.cache = NewLRU[*xgmatch.ParsedMatch](cfg.MaxItems, cfg.MaxSizeBytes)
	m.enabled = true
	m.ttl = time.Duration(cfg.TTLSeconds) * time.Second
	return m
}

// Key is the hex SHA-256 of an archive.
func Key(archive []byte) string {
	sum := sha256.Sum256(archive)
	return hex.EncodeToString(sum[:])
}

func (m *Manager) Get(key string) (*xgmatch.ParsedMatch, bool) {
	if !m.enabled {
		return nil, false
	}

	pm, addedAt, ok := m.cache.getWithAge(key)
	if ok && m.ttl > 0 && m.now().Sub(addedAt) > m.ttl {
		m.cache.Delete(key)
		m.logger.Debug("Cache entry expired", "key", key, "age", m.now().Sub(addedAt).String())
		ok = false
	}

	if m.recorder != nil {
		if ok {
			m.recorder.RecordCacheHit()
		} else {
			m.recorder.RecordCacheMiss()
		}
	}
	return pm, ok
}

func (m *Manager) Put(key string, pm *xgmatch.ParsedMatch) {
	if !m.enabled || pm == nil {
		return
	}

	size := EstimateSize(pm)
	m.cache.Put(key, pm, size)
	m.logger.Debug("Cached parsed match", "key", key, "size", size)

	if m.recorder != nil {
		m.recorder.SetCacheStats(float64(m.cache.Len()), float64(m.cache.Size()))
	}
}

func (m *Manager) Stats() Stats {
	if !m.enabled {
		return Stats{}
	}
	return m.cache.Stats()
}

func (m *Manager) Clear() {
	if m.enabled {
		m.cache.Clear()
	}
}

func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// EstimateSize approximates the memory held by a parsed match.
func EstimateSize(pm *xgmatch.ParsedMatch) int64 {
	size := int64(matchOverhead)
	size += int64(len(pm.Match.Player1) + len(pm.Match.Player2))
	for _, g := range pm.Games {
		size += gameOverhead + int64(len(g.Actions))*actionOverhead
	}
	return size
}

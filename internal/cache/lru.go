package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key     string
	value   V
	size    int64
	addedAt time.Time
}

// LRU is a thread-safe least-recently-used cache bounded by item count and
// total size. A zero limit means unbounded.
type LRU[V any] struct {
	mu           sync.Mutex
	maxItems     int
	maxSizeBytes int64
	currentSize  int64
	items        map[string]*list.Element
	evictionList *list.List

	hits      int64
	misses    int64
	evictions int64
}

func NewLRU[V any](maxItems int, maxSizeBytes int64) *LRU[V] {
	return &LRU[V]{
		maxItems:     maxItems,
		maxSizeBytes: maxSizeBytes,
		items:        make(map[string]*list.Element),
		evictionList: list.New(),
	}
}

func (c *LRU[V]) Get(key string) (V, bool) {
	v, _, ok := c.getWithAge(key)
	return v, ok
}

// getWithAge also reports when the entry was stored.
func (c *LRU[V]) getWithAge(key string) (V, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictionList.MoveToFront(elem)
		c.hits++
		e := elem.Value.(*entry[V])
		return e.value, e.addedAt, true
	}

	c.misses++
	var zero V
	return zero, time.Time{}, false
}

// Put adds or replaces key. size is the approximate footprint in bytes.
func (c *LRU[V]) Put(key string, value V, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictionList.MoveToFront(elem)
		e := elem.Value.(*entry[V])
		c.currentSize += size - e.size
		e.value = value
		e.size = size
		e.addedAt = time.Now()
		c.evict()
		return
	}

	elem := c.evictionList.PushFront(&entry[V]{
		key:     key,
		value:   value,
		size:    size,
		addedAt: time.Now(),
	})
	c.items[key] = elem
	c.currentSize += size

	c.evict()
}

// evict drops from the back until the cache fits. The most recent entry is
// always kept, even when it alone exceeds the size limit.
func (c *LRU[V]) evict() {
	for c.evictionList.Len() > 1 {
		over := (c.maxItems > 0 && c.evictionList.Len() > c.maxItems) ||
			(c.maxSizeBytes > 0 && c.currentSize > c.maxSizeBytes)
		if !over {
			return
		}
		c.removeElement(c.evictionList.Back())
		c.evictions++
	}
}

func (c *LRU[V]) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(c.items, e.key)
	c.currentSize -= e.size
}

func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictionList.Init()
	c.currentSize = 0
}

func (c *LRU[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionList.Len()
}

func (c *LRU[V]) Size() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

type Stats struct {
	Items     int     `json:"items"`
	Size      int64   `json:"sizeBytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Items:     c.evictionList.Len(),
		Size:      c.currentSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
	}
}

func (c *LRU[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

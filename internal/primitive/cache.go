// Package primitive provides the process-wide cache of compiled
// primitives. Compiling a primitive resolves iteration geometry for a
// fixed shape/layout/axis; the cache makes sure an identical combination
// is only ever compiled once.
package primitive

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type entry[P any] struct {
	ready chan struct{}
	prim  P
	err   error
}

// Cache holds compiled primitives keyed by shape parameters. Lookups for
// a key being built block until the build finishes, so concurrent
// requests for the same shape compile at most once. Eviction is FIFO:
// shape churn in inference workloads is rare, so recency tracking is not
// worth the bookkeeping.
type Cache[P any] struct {
	op  string
	log *logger.Logger

	mu      sync.Mutex
	cap     int
	entries map[string]*entry[P]
	order   []string

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache creates a cache for one op kind. capacity 0 means unbounded.
func NewCache[P any](op string, capacity int) *Cache[P] {
	return &Cache[P]{
		op:      op,
		log:     logger.Log.With(op + "_cache"),
		cap:     capacity,
		entries: make(map[string]*entry[P]),
	}
}

// SetCapacity adjusts the bound and evicts down to it.
func (c *Cache[P]) SetCapacity(capacity int) {
	c.mu.Lock()
	c.cap = capacity
	c.evictLocked()
	c.mu.Unlock()
}

// GetOrBuild returns the cached primitive for key, building it with build
// on first use. A failed build is not cached; the next caller retries.
func (c *Cache[P]) GetOrBuild(key string, build func() (P, error)) (P, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		metrics.RecordCacheHit(c.op)
		<-e.ready
		return e.prim, e.err
	}

	e := &entry[P]{ready: make(chan struct{})}
	c.entries[key] = e
	c.order = append(c.order, key)
	c.mu.Unlock()

	c.misses.Add(1)
	metrics.RecordCacheMiss(c.op)

	start := time.Now()
	e.prim, e.err = build()
	close(e.ready)
	metrics.RecordPrimitiveBuild(c.op, time.Since(start))

	c.mu.Lock()
	if e.err != nil {
		// drop the failed entry so the key stays retryable
		delete(c.entries, key)
		c.removeFromOrderLocked(key)
	} else {
		c.evictLocked()
	}
	size := len(c.entries)
	c.mu.Unlock()
	metrics.RecordCacheSize(size)

	if e.err != nil {
		c.log.Err(e.err, "primitive build failed", "key", key)
	} else {
		c.log.Debug("primitive compiled", "key", key, "build_ms", time.Since(start).Milliseconds())
	}
	return e.prim, e.err
}

func (c *Cache[P]) evictLocked() {
	if c.cap <= 0 {
		return
	}
	for len(c.entries) > c.cap && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			c.evictions.Add(1)
			metrics.RecordCacheEviction(c.op)
		}
	}
}

func (c *Cache[P]) removeFromOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len reports the number of cached primitives.
func (c *Cache[P]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached primitive.
func (c *Cache[P]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[P])
	c.order = nil
	c.mu.Unlock()
	metrics.RecordCacheSize(0)
}

func (c *Cache[P]) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

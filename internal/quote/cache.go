package quote

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CacheSource decorates a Source with a TTL+LRU cache.
type CacheSource struct {
	next Source
	ttl  time.Duration
	size int
	now  func() time.Time

	mu    sync.Mutex
	items map[string]cacheEntry
	order []string // LRU order, oldest at index 0
}

type cacheEntry struct {
	at time.Time
	q  Quote
}

func NewCacheSource(next Source, ttl time.Duration, size int) *CacheSource {
	if size < 1 {
		size = 1
	}
	return &CacheSource{next: next, ttl: ttl, size: size, now: time.Now, items: make(map[string]cacheEntry)}
}

func (c *CacheSource) Price(ctx context.Context, sym string) (Quote, error) {
	k := strings.ToUpper(strings.TrimSpace(sym))
	now := c.now()
	c.mu.Lock()
	if ent, ok := c.items[k]; ok {
		if now.Sub(ent.at) <= c.ttl {
			c.touchLocked(k)
			q := ent.q
			c.mu.Unlock()
			return q, nil
		}
		delete(c.items, k)
		c.removeFromOrderLocked(k)
	}
	c.mu.Unlock()

	// Errors are not cached.
	q, err := c.next.Price(ctx, sym)
	if err != nil {
		return q, err
	}

	c.mu.Lock()
	if _, ok := c.items[k]; ok {
		c.removeFromOrderLocked(k)
	}
	c.items[k] = cacheEntry{at: now, q: q}
	c.order = append(c.order, k)
	for len(c.items) > c.size && len(c.order) > 0 {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.items, old)
	}
	c.mu.Unlock()
	return q, nil
}

// Len returns the number of cached quotes.
func (c *CacheSource) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *CacheSource) touchLocked(k string) {
	c.removeFromOrderLocked(k)
	c.order = append(c.order, k)
}

func (c *CacheSource) removeFromOrderLocked(k string) {
	for i, v := range c.order {
		if v == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

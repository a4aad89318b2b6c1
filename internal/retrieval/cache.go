package retrieval

import (
	"strings"
	"sync"

	"ai-practice-session-service/internal/models"
)

// contextCache is a bounded FIFO cache for assembled context blobs.
// Eviction is oldest-inserted first, not recency-based.
type contextCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string
}

func newContextCache(capacity int) *contextCache {
	if capacity < 1 {
		capacity = 1
	}
	return &contextCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
	}
}

// cacheKey normalizes an utterance/level pair into a cache key.
func cacheKey(utterance string, level models.Level) string {
	return strings.ToLower(strings.TrimSpace(utterance)) + "|" + string(level)
}

func (c *contextCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	return v, ok
}

func (c *contextCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = value
	c.order = append(c.order, key)
}

func (c *contextCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

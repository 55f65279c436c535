package github

import (
	"sync"
	"time"
)

// ResponseCache is a process-wide in-memory cache for GitHub API responses.
// It is constructed explicitly and injected into clients so tests get clean
// per-test isolation instead of ambient global state.
type ResponseCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// NewResponseCache creates a cache whose entries expire after ttl.
// A non-positive ttl disables caching entirely.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *ResponseCache) Get(key string) ([]byte, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.body, true
}

func (c *ResponseCache) Set(key string, body []byte) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{body: body, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *ResponseCache) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

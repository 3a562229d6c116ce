package catalog

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResponseCache keeps successful GET response bodies keyed by URL for a
// bounded time. A nil *ResponseCache is valid and caches nothing.
type ResponseCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewResponseCache returns a cache holding up to size bodies for ttl, or nil
// when caching is disabled by a non-positive size or ttl.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &ResponseCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the cached body for key.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// Add stores body under key.
func (c *ResponseCache) Add(key string, body []byte) {
	if c == nil {
		return
	}
	c.lru.Add(key, body)
}

// Len returns the number of live entries.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

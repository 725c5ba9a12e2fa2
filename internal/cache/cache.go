// Package cache is a small in-memory TTL cache with ETag support. It sits in
// front of the condition providers so repeated identical passthrough requests
// are answered locally instead of hitting the upstream again.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TTLs for the provider passthrough endpoints. Weather moves faster than the
// seismic feed, so it expires sooner.
const (
	TTLWeather = 5 * time.Minute
	TTLSeismic = 10 * time.Minute
)

type entry struct {
	data      []byte
	etag      string
	expiresAt time.Time
}

// Cache holds serialized responses keyed by request identity. A disabled
// cache still computes ETags so conditional requests keep working.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache. When enabled, a background loop sweeps expired
// entries; a disabled cache never stores anything.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		enabled: enabled,
	}
	if enabled {
		go c.sweep()
	}
	return c
}

// Get returns the cached bytes and their ETag. An expired entry counts as a
// miss; the sweeper removes it later.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}

	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		return nil, "", false
	}
	c.hits.Add(1)
	return e.data, e.etag, true
}

// Set stores the bytes under the key for the given TTL and returns the ETag
// computed for them.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, etag: etag, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return etag
}

// Stats reports counters for the health endpoint.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	keys := len(c.entries)
	c.mu.RUnlock()

	return map[string]any{
		"enabled": c.enabled,
		"keys":    keys,
		"hits":    c.hits.Load(),
		"misses":  c.misses.Load(),
	}
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// ComputeETag derives a weak ETag from the response bytes.
func ComputeETag(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`W/"%x"`, sum[:8])
}

// CheckETagMatch reports whether an If-None-Match header matches the ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	return ifNoneMatch == "*" || ifNoneMatch == etag
}

package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

// Cache is a tiny in-memory TTL cache for reverse-geocode lookups keyed
// by coordinate.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  string
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Get returns the cached label and true if present and not expired.
func (c *Cache) Get(co models.Coord) (string, bool) {
	k := keyFor(co)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return "", false
	}
	return e.v, true
}

// Set stores a label in the cache.
func (c *Cache) Set(co models.Coord, v string) {
	k := keyFor(co)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// CachedClient wraps a Client with the TTL cache. Only successful
// lookups are cached so transient failures retry naturally.
type CachedClient struct {
	Inner Client
	Cache *Cache
}

func (c *CachedClient) ReverseGeocode(ctx context.Context, co models.Coord) (string, error) {
	if v, ok := c.Cache.Get(co); ok {
		return v, nil
	}
	v, err := c.Inner.ReverseGeocode(ctx, co)
	if err != nil {
		return "", err
	}
	c.Cache.Set(co, v)
	return v, nil
}

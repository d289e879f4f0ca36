// Package assets fetches, decodes and applies mesh, material and texture
// assets onto placeholder nodes of the scene graph.
package assets

import "sync"

// Cache is an in-memory store of fetched blobs keyed by content hash.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	hits   int
	misses int
	bytes  int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves a blob.
func (c *Cache) Get(hash string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[hash]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores a blob.
func (c *Cache) Set(hash string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.data[hash]; ok {
		c.bytes -= len(old)
	}
	c.data[hash] = data
	c.bytes += len(data)
}

// Clear drops all blobs and resets statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
	c.bytes = 0
}

// Stats returns hit/miss counters and the number of cached bytes.
func (c *Cache) Stats() (hits, misses, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.bytes
}

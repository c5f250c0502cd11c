package cache

import (
	"errors"
	"time"
)

// LayeredCache fronts a DiskCache with a short-lived MemoryCache
type LayeredCache struct {
	memory    *MemoryCache
	disk      *DiskCache
	memoryTTL time.Duration
}

// NewLayeredCache creates a memory-over-disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

// Get checks memory, then disk. A disk hit is copied into memory for no
// longer than the entry has left to live on disk.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}

	e, ok := c.disk.lookup(key)
	if !ok {
		return nil, false
	}
	_ = c.memory.Set(key, e.Data, c.promoteTTL(e))
	return e.Data, true
}

func (c *LayeredCache) promoteTTL(e *diskEntry) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	left := e.ExpiresAt.Sub(c.disk.now())
	if c.memoryTTL > 0 && c.memoryTTL < left {
		return c.memoryTTL
	}
	return left
}

// Set writes to both layers; memory keeps its own shorter TTL
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.disk.Set(key, value, ttl); err != nil {
		return err
	}
	return c.memory.Set(key, value, 0)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Disk exposes the persistent layer for maintenance commands
func (c *LayeredCache) Disk() *DiskCache {
	return c.disk
}

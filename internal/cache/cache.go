package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

const keyPrefix = "eventscout:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey generates the cache key for fetched page content
func PageKey(url string) string {
	return Key("page", url)
}

// Key generates a namespaced cache key from its parts
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by config: layered memory+disk when a
// directory is set, memory-only otherwise, and a no-op cache when disabled
func New(config *model.CacheConfig) Cache {
	if config == nil || !config.Enabled {
		return Nop{}
	}
	if config.Dir == "" {
		return NewMemoryCache(config.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(config.MemoryTTL, config.Dir, config.DiskTTL)
}

// Nop is a cache that stores nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }

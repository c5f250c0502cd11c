package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entryExt = ".json"

// DiskCache persists entries as JSON files under dir, sharded by the first
// byte of the hashed key so no single directory grows unbounded
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache whose entries live ttl by default
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Data      []byte    `json:"data"`
}

func (e *diskEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get returns the stored value for key if present and not expired
func (c *DiskCache) Get(key string) ([]byte, bool) {
	e, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// lookup reads the entry for key, removing it when corrupt or expired
func (c *DiskCache) lookup(key string) (*diskEntry, bool) {
	file := c.file(key)
	e, err := readEntry(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(file)
		}
		return nil, false
	}
	if e.Key != key {
		return nil, false
	}
	if e.expired(c.now()) {
		_ = os.Remove(file)
		return nil, false
	}
	return e, true
}

// Set stores value under key. ttl 0 uses the cache default and a negative
// ttl stores an entry that is already expired.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.now()
	e := diskEntry{Key: key, StoredAt: now, Data: value}
	if ttl != 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	file := c.file(key)
	shard := filepath.Dir(file)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// rename over the target so readers never observe a partial entry
	tmp, err := os.CreateTemp(shard, ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Usage summarizes what is on disk
type Usage struct {
	Entries int
	Expired int
	Bytes   int64
}

// Usage walks the cache directory and counts entries
func (c *DiskCache) Usage() (Usage, error) {
	var u Usage
	now := c.now()
	err := c.walk(func(path string, info fs.FileInfo) error {
		e, err := readEntry(path)
		if err != nil {
			return nil
		}
		u.Entries++
		u.Bytes += info.Size()
		if e.expired(now) {
			u.Expired++
		}
		return nil
	})
	return u, err
}

// Prune deletes expired and unreadable entries and returns how many were
// removed
func (c *DiskCache) Prune() (int, error) {
	removed := 0
	now := c.now()
	err := c.walk(func(path string, _ fs.FileInfo) error {
		e, err := readEntry(path)
		if err == nil && !e.expired(now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *DiskCache) walk(fn func(path string, info fs.FileInfo) error) error {
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), entryExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, info)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// file maps key to <dir>/<aa>/<sha256>.json
func (c *DiskCache) file(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+entryExt)
}

func readEntry(path string) (*diskEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e diskEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &e, nil
}

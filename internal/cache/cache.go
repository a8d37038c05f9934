// Package cache remembers the content hash of every file a rewrite produced,
// so an unchanged file can be skipped on the next run under the same
// settings and the same per-file target.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Cache provides file-based storage of rewrite outcomes.
type Cache struct {
	dir         string
	fingerprint string
	enabled     bool
}

// Entry is the recorded outcome for one rewritten file.
type Entry struct {
	Path        string    `json:"path"`
	Hash        string    `json:"hash"`
	Fingerprint string    `json:"fingerprint"`
	Target      string    `json:"target"`
	Timestamp   time.Time `json:"timestamp"`
}

// New creates a cache under dir. Entries recorded under a different
// fingerprint are treated as missing.
func New(dir, fingerprint string, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:         dir,
		fingerprint: fingerprint,
		enabled:     true,
	}, nil
}

// Fingerprint hashes the JSON form of v with xxhash. Two settings values
// with equal JSON share a fingerprint.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Fresh reports whether path still has the content recorded after its last
// rewrite under the current fingerprint and the given target. The target
// identifies what the file was rewritten towards, such as its assigned
// namespace.
func (c *Cache) Fresh(path, target string) bool {
	if !c.enabled {
		return false
	}
	entry, ok := c.load(path)
	if !ok || entry.Fingerprint != c.fingerprint || entry.Target != target {
		return false
	}
	hash, err := HashFile(path)
	if err != nil {
		return false
	}
	return hash == entry.Hash
}

// Record stores the current content hash of path for target.
func (c *Cache) Record(path, target string) error {
	if !c.enabled {
		return nil
	}
	hash, err := HashFile(path)
	if err != nil {
		return err
	}

	entry := Entry{
		Path:        path,
		Hash:        hash,
		Fingerprint: c.fingerprint,
		Target:      target,
		Timestamp:   time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(path), data, 0o600)
}

func (c *Cache) load(path string) (Entry, bool) {
	data, err := os.ReadFile(c.keyPath(path))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false
	}
	// Guards against key collisions.
	if entry.Path != path {
		return Entry{}, false
	}
	return entry, true
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a file path to its entry path.
func (c *Cache) keyPath(path string) string {
	return filepath.Join(c.dir, strconv.FormatUint(xxhash.Sum64String(path), 16)+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}

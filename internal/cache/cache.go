package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dshills/scribe/internal/atomicfile"
	"github.com/dshills/scribe/internal/redact"
)

// Key identifies one scan: the same text scanned in another field or under
// another rule set is a different entry.
type Key struct {
	Fingerprint string
	Field       string
	Text        string
}

// Hash returns the hex SHA-256 of the key material.
func (k Key) Hash() string {
	h := sha256.New()
	for _, part := range []string{k.Fingerprint, k.Field, k.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is one cached redaction result as stored on disk.
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	Field       string        `json:"field"`
	Result      redact.Result `json:"result"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Cache is a file-based store of redaction results, sharded into
// subdirectories by the first byte of the key hash.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new Cache. If dir is empty, uses the default cache directory.
// A ttlSeconds of zero or less keeps entries until cleared.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if !enabled {
		return &Cache{}, nil
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlSeconds) * time.Second,
		enabled: true,
		now:     time.Now,
	}, nil
}

// Get returns the cached result for key. An expired entry is removed and
// counts as a miss.
func (c *Cache) Get(key Key) (redact.Result, bool) {
	if !c.enabled {
		return redact.Result{}, false
	}
	path := c.path(key.Hash())
	e, err := readEntry(path)
	if err != nil || e.Fingerprint != key.Fingerprint || e.Field != key.Field {
		c.misses.Add(1)
		return redact.Result{}, false
	}
	if c.expired(e) {
		_ = os.Remove(path)
		c.misses.Add(1)
		return redact.Result{}, false
	}
	c.hits.Add(1)
	return e.Result, true
}

// Put stores a result. The write is atomic so concurrent readers never see
// a torn entry.
func (c *Cache) Put(ctx context.Context, key Key, res redact.Result) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(Entry{
		Fingerprint: key.Fingerprint,
		Field:       key.Field,
		Result:      res,
		CreatedAt:   c.now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return atomicfile.WriteFile(ctx, c.path(key.Hash()), data, 0o644)
}

// Clear removes every entry and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	return c.remove(func(*Entry) bool { return true })
}

// Prune removes entries that have expired or were produced by a rule set
// other than fingerprint. Unreadable entries are removed too.
func (c *Cache) Prune(fingerprint string) (int, error) {
	return c.remove(func(e *Entry) bool {
		return e == nil || c.expired(*e) || e.Fingerprint != fingerprint
	})
}

func (c *Cache) remove(match func(*Entry) bool) (int, error) {
	removed := 0
	err := c.walk(func(path string, _ fs.FileInfo, e *Entry) {
		if match(e) && os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// Stats describes the cache contents and this process's hit rate.
type Stats struct {
	Dir        string `json:"dir"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
	Stale      int    `json:"stale"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
}

// GetStats counts the entries on disk. Entries from a rule set other than
// fingerprint are reported as stale.
func (c *Cache) GetStats(fingerprint string) (Stats, error) {
	stats := Stats{Dir: c.dir, Hits: c.hits.Load(), Misses: c.misses.Load()}
	err := c.walk(func(_ string, info fs.FileInfo, e *Entry) {
		stats.Entries++
		stats.TotalBytes += info.Size()
		switch {
		case e == nil:
			stats.Stale++
		case c.expired(*e):
			stats.Expired++
		case e.Fingerprint != fingerprint:
			stats.Stale++
		}
	})
	return stats, err
}

// walk visits every entry file. e is nil for files that do not parse.
func (c *Cache) walk(fn func(path string, info fs.FileInfo, e *Entry)) error {
	if !c.enabled || c.dir == "" {
		return nil
	}
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		e, err := readEntry(path)
		if err != nil {
			fn(path, info, nil)
			return nil
		}
		fn(path, info, &e)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	return nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash[:2], hash+".json")
}

func readEntry(path string) (Entry, error) {
	var e Entry
	data, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(data, &e)
	return e, err
}

// DefaultDir returns the OS cache directory for scribe.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "scribe"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return filepath.Join(dir, "scribe"), nil
}

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/scribe/internal/atomicfile"
	"github.com/dshills/scribe/internal/document"
)

var (
	// ErrNotFound is returned when a checkpoint does not exist.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt is returned when a checkpoint exists but cannot be decoded.
	ErrCorrupt = errors.New("checkpoint corrupt")
	// ErrExists is returned by Save when the checkpoint was already written.
	ErrExists = errors.New("checkpoint already exists")
)

// Store persists batches of records as named checkpoints. Checkpoints are
// write-once: the next stage always writes a new one.
type Store interface {
	Load(ctx context.Context, key Key) ([]document.Record, error)
	Save(ctx context.Context, key Key, recs []document.Record) error
	// List returns the keys with suffix, ordered by Less.
	List(ctx context.Context, suffix Suffix) ([]Key, error)
	Delete(ctx context.Context, key Key) error
}

// FileStore keeps one indented JSON array per checkpoint in a directory.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore opens (creating if needed) a checkpoint directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file path of key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, key.Name())
}

func (s *FileStore) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Load reads a checkpoint.
func (s *FileStore) Load(ctx context.Context, key Key) ([]document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key.Name(), err)
	}
	var recs []document.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key.Name(), err)
	}
	return recs, nil
}

// Save writes a new checkpoint atomically. It refuses to overwrite.
func (s *FileStore) Save(ctx context.Context, key Key, recs []document.Record) error {
	path := s.Path(key)
	unlock := s.lock(path)
	defer unlock()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, key.Name())
	}
	if recs == nil {
		recs = []document.Record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key.Name(), err)
	}
	if err := atomicfile.WriteFile(ctx, path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key.Name(), err)
	}
	return nil
}

// List returns the keys with the given suffix, oldest first.
func (s *FileStore) List(ctx context.Context, suffix Suffix) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	var keys []Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, err := ParseName(e.Name())
		if err != nil || k.Suffix != suffix {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })
	return keys, nil
}

// ListAll returns every checkpoint key in the store.
func (s *FileStore) ListAll(ctx context.Context) ([]Key, error) {
	var all []Key
	for _, suf := range suffixes {
		keys, err := s.List(ctx, suf)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
	}
	sort.Slice(all, func(i, j int) bool { return Less(all[i], all[j]) })
	return all, nil
}

// Delete removes a checkpoint.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(key)
	unlock := s.lock(path)
	defer unlock()
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key.Name())
	}
	return err
}

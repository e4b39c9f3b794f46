package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/scribe/internal/document"
)

// MemStore is an in-memory Store. Records are deep-copied in and out.
type MemStore struct {
	mu   sync.Mutex
	data map[Key][]document.Record

	// FailSave, when set, is returned by Save for matching keys.
	FailSave func(Key) error
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[Key][]document.Record)}
}

func (m *MemStore) Load(ctx context.Context, key Key) ([]document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Name())
	}
	return document.CloneAll(recs), nil
}

func (m *MemStore) Save(ctx context.Context, key Key, recs []document.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailSave != nil {
		if err := m.FailSave(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, key.Name())
	}
	c := document.CloneAll(recs)
	if c == nil {
		c = []document.Record{}
	}
	m.data[key] = c
	return nil
}

func (m *MemStore) List(ctx context.Context, suffix Suffix) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []Key
	for k := range m.data {
		if k.Suffix == suffix {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })
	return keys, nil
}

func (m *MemStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key.Name())
	}
	delete(m.data, key)
	return nil
}

// Len returns the number of stored checkpoints.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

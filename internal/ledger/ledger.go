// Package ledger records which inbox documents have been read and which have
// been fully published, so later runs skip completed work.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned for paths the ledger has no entry for.
var ErrNotFound = errors.New("ledger entry not found")

// Entry is the ledger state of one document, keyed by its inbox-relative path.
type Entry struct {
	Path        string    `json:"path"`
	LastRead    time.Time `json:"last_read"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Stages      []string  `json:"stages"`
}

// Ledger is the persisted dedup map.
type Ledger interface {
	Get(ctx context.Context, path string) (Entry, bool, error)
	// MarkRead records a fresh read and restarts the stage list.
	MarkRead(ctx context.Context, path string, at time.Time) error
	AddStage(ctx context.Context, path, stage string) error
	Complete(ctx context.Context, path string, at time.Time) error
	List(ctx context.Context) ([]Entry, error)
	Reset(ctx context.Context, path string) error
	Close() error
}

// Memory is an in-process Ledger.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, path string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	e.Stages = slices.Clone(e.Stages)
	return e, ok, nil
}

func (m *Memory) MarkRead(_ context.Context, path string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = Entry{Path: path, LastRead: at, Stages: []string{"read"}}
	return nil
}

func (m *Memory) AddStage(_ context.Context, path, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(e.Stages, stage) {
		e.Stages = append(slices.Clone(e.Stages), stage)
	}
	m.entries[path] = e
	return nil
}

func (m *Memory) Complete(_ context.Context, path string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok {
		return ErrNotFound
	}
	e.Completed = true
	e.CompletedAt = at
	m.entries[path] = e
	return nil
}

func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		e.Stages = slices.Clone(e.Stages)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Reset(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[path]; !ok {
		return ErrNotFound
	}
	delete(m.entries, path)
	return nil
}

func (m *Memory) Close() error { return nil }

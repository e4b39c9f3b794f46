package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerContract(t *testing.T, l Ledger) {
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	_, ok, err := l.Get(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l.AddStage(ctx, "notes/a.md", "optimized"), ErrNotFound)
	assert.ErrorIs(t, l.Complete(ctx, "notes/a.md", at), ErrNotFound)

	require.NoError(t, l.MarkRead(ctx, "notes/a.md", at))
	require.NoError(t, l.AddStage(ctx, "notes/a.md", "optimized"))
	require.NoError(t, l.AddStage(ctx, "notes/a.md", "optimized"), "adding a stage twice is a no-op")

	e, ok, err := l.Get(ctx, "notes/a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.LastRead.Equal(at))
	assert.False(t, e.Completed)
	assert.Equal(t, []string{"read", "optimized"}, e.Stages)

	done := at.Add(time.Hour)
	require.NoError(t, l.Complete(ctx, "notes/a.md", done))
	e, _, err = l.Get(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.True(t, e.Completed)
	assert.True(t, e.CompletedAt.Equal(done))

	require.NoError(t, l.MarkRead(ctx, "b.md", at))
	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.md", entries[0].Path)

	// A re-read restarts the entry.
	require.NoError(t, l.MarkRead(ctx, "notes/a.md", done))
	e, _, err = l.Get(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.False(t, e.Completed)
	assert.Equal(t, []string{"read"}, e.Stages)

	require.NoError(t, l.Reset(ctx, "b.md"))
	assert.ErrorIs(t, l.Reset(ctx, "b.md"), ErrNotFound)
}

func TestMemory(t *testing.T) {
	ledgerContract(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	l, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	defer l.Close()
	ledgerContract(t, l)
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	l, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.MarkRead(ctx, "a.md", at))
	require.NoError(t, l.Complete(ctx, "a.md", at))
	require.NoError(t, l.Close())

	l, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	e, ok, err := l.Get(ctx, "a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.Completed)
}

func TestSQLite_ConcurrentAddStage(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	paths := []string{"a.md", "b.md", "c.md", "d.md"}
	for _, p := range paths {
		require.NoError(t, l.MarkRead(ctx, p, time.Now()))
	}
	var wg sync.WaitGroup
	for _, p := range paths {
		for _, st := range []string{"optimized", "enhanced", "reviewed"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, l.AddStage(ctx, p, st))
			}()
		}
	}
	wg.Wait()

	for _, p := range paths {
		e, _, err := l.Get(ctx, p)
		require.NoError(t, err)
		assert.Len(t, e.Stages, 4, p)
	}
}

// Package atomicfile writes files so that readers see either the old
// content or the new content, never a partial write.
package atomicfile

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const bufSize = 64 * 1024

// WriteFile atomically replaces path with data.
func WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return Write(ctx, path, bytes.NewReader(data), perm)
}

// Write atomically replaces path with everything read from r. The content
// goes to a temp file in the same directory which is synced and renamed
// over path. The temp file is removed on every failure path.
func Write(ctx context.Context, path string, r io.Reader, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		return fail(fmt.Errorf("setting permissions: %w", err))
	}
	bw := bufio.NewWriterSize(tmp, bufSize)
	if _, err := io.Copy(bw, r); err != nil {
		return fail(fmt.Errorf("writing temp file: %w", err))
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flushing temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	// Best effort: persist the rename itself.
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/ledger"
	"github.com/dshills/scribe/internal/logging"
	"github.com/dshills/scribe/internal/markup"
	"github.com/dshills/scribe/internal/redact"
)

// DefaultExtensions are the inbox file types read when none are configured.
var DefaultExtensions = []string{".md", ".txt", ".markdown"}

// Reader scans the inbox and writes the first checkpoint of every batch.
type Reader struct {
	InboxDir    string
	ArchiveDir  string
	Extensions  []string
	RedactPaths []string
	BatchSize   int
	Ledger      ledger.Ledger
	Store       checkpoint.Store
	Logger      *slog.Logger
	Now         func() time.Time
}

// ReadResult summarizes one inbox scan.
type ReadResult struct {
	Keys    []checkpoint.Key
	Total   int
	Failed  int
	Skipped int
}

// Read walks the inbox, decodes every new document and saves the records
// in batches. A missing inbox is an empty inbox.
func (rd *Reader) Read(ctx context.Context) (ReadResult, error) {
	var res ReadResult
	log := rd.logger()
	now := time.Now
	if rd.Now != nil {
		now = rd.Now
	}
	started := now()

	paths, skipped, err := rd.scan(ctx)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped

	var recs []document.Record
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if rd.Ledger != nil {
			e, ok, err := rd.Ledger.Get(ctx, rel)
			if err != nil {
				return res, fmt.Errorf("ledger lookup %s: %w", rel, err)
			}
			if ok && e.Completed {
				res.Skipped++
				continue
			}
		}
		rec := rd.load(rel, now())
		if rec.Status.Failed() {
			res.Failed++
			log.Warn("read failed", "path", rel, "error", rec.Error)
		}
		if rd.Ledger != nil {
			if err := rd.Ledger.MarkRead(ctx, rel, now()); err != nil {
				return res, fmt.Errorf("ledger mark read %s: %w", rel, err)
			}
		}
		recs = append(recs, rec)
	}
	res.Total = len(recs)

	size := rd.BatchSize
	if size <= 0 {
		size = 10
	}
	seq := 0
	for batch := range slices.Chunk(recs, size) {
		seq++
		key := checkpoint.Key{Batch: checkpoint.NewBatchID(started, seq), Suffix: checkpoint.SuffixRead}
		if err := rd.Store.Save(ctx, key, batch); err != nil {
			return res, fmt.Errorf("saving %s: %w", key, err)
		}
		res.Keys = append(res.Keys, key)
		log.Debug("wrote batch", "checkpoint", key.Name(), "records", len(batch))
	}
	return res, nil
}

// scan returns the inbox-relative slash paths of candidate files, sorted.
func (rd *Reader) scan(ctx context.Context) ([]string, int, error) {
	if _, err := os.Stat(rd.InboxDir); errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	archive, _ := filepath.Abs(rd.ArchiveDir)
	exts := rd.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	var (
		out     []string
		skipped int
	)
	err := filepath.WalkDir(rd.InboxDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == rd.InboxDir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); rd.ArchiveDir != "" && abs == archive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExt(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(rd.InboxDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if redact.ShouldRedactPath(rel, rd.RedactPaths) {
			skipped++
			rd.logger().Info("refusing protected path", "path", rel)
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning inbox: %w", err)
	}
	slices.Sort(out)
	return out, skipped, nil
}

// load reads one file into a record in status read or read_failed.
func (rd *Reader) load(rel string, at time.Time) document.Record {
	src := filepath.Join(rd.InboxDir, filepath.FromSlash(rel))
	rec := document.Record{Path: rel, SourcePath: src, Filename: filepath.Base(rel)}

	fail := func(err error) document.Record {
		_ = rec.Fail("read", document.StatusReadFailed, err.Error(), at)
		return rec
	}
	info, err := os.Stat(src)
	if err != nil {
		return fail(err)
	}
	rec.Size = info.Size()
	rec.Modified = info.ModTime()
	data, err := os.ReadFile(src)
	if err != nil {
		return fail(err)
	}
	text, enc, err := decode(data)
	if err != nil {
		return fail(err)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rec.Encoding = enc
	rec.Content = text
	rec.Lines = strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		rec.Lines++
	}

	rec.Body = text
	if fm, body, ok := markup.SplitFrontMatter(text); ok {
		rec.Body = body
		rec.OriginalTitle = fm.Title
		rec.Tags = slices.Clone(fm.Tags)
	}
	_ = rec.Advance("read", document.StatusRead, at)
	return rec
}

func hasExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	return slices.ContainsFunc(exts, func(e string) bool {
		return strings.EqualFold(ext, "."+strings.TrimPrefix(e, "."))
	})
}

func (rd *Reader) logger() *slog.Logger {
	if rd.Logger == nil {
		return logging.Discard()
	}
	return rd.Logger
}

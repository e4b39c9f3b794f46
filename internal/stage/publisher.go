package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/scribe/internal/atomicfile"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/ledger"
	"github.com/dshills/scribe/internal/markup"
)

// Publisher renders each eligible record as a post, archives the source
// file and marks the document complete in the ledger.
type Publisher struct {
	gate
	PostsDir   string
	ArchiveDir string
	Cover      string
	Ledger     ledger.Ledger
	Logger     *slog.Logger

	mu       sync.Mutex
	reserved map[string]bool
}

// NewPublisher returns the publishing stage. It accepts any
// publish-eligible status, not only format_checked.
func NewPublisher(postsDir, archiveDir string, l ledger.Ledger, log *slog.Logger) *Publisher {
	return &Publisher{
		gate:       newGate("publish", document.StatusFormatChecked, document.StatusPublished),
		PostsDir:   postsDir,
		ArchiveDir: archiveDir,
		Ledger:     l,
		Logger:     log,
	}
}

// Accepts reports whether s is in the publish-eligible set.
func (p *Publisher) Accepts(s document.Status) bool {
	return s.PublishEligible()
}

func (p *Publisher) Apply(ctx context.Context, rec document.Record) document.Record {
	return p.apply(rec, p.Accepts(rec.Status), func(r *document.Record) error {
		at := p.clock()
		if r.Title == "" {
			r.Title = markup.ExtractTitle(r.Body)
		}
		if r.Slug == "" {
			r.Slug = slugFor(r.Title, r.Filename)
		}
		fm := markup.NewFrontMatter(markup.PostMeta{
			Title:       r.Title,
			Category:    r.Category,
			Tags:        r.Tags,
			Excerpt:     r.Excerpt,
			Summary:     r.Summary,
			ReadingTime: r.ReadingTime,
			Cover:       p.Cover,
		}, at)
		data, err := markup.RenderPost(fm, r.Body)
		if err != nil {
			return err
		}

		path, err := p.reserve(at.Format("2006-01-02") + "-" + r.Slug)
		if err != nil {
			return err
		}
		if err := atomicfile.WriteFile(ctx, path, data, 0o644); err != nil {
			return fmt.Errorf("writing post: %w", err)
		}

		if r.SourcePath != "" {
			archived, err := p.archive(r.SourcePath, filepath.Join(p.ArchiveDir, at.Format("2006-01")))
			if err != nil {
				os.Remove(path)
				return fmt.Errorf("archiving source: %w", err)
			}
			if p.Logger != nil {
				p.Logger.Debug("archived source", "path", r.Path, "to", archived)
			}
		}

		r.PostFile = path
		r.PublishedAt = at
		if p.Ledger != nil {
			if err := p.Ledger.Complete(ctx, r.Path, at); err != nil && p.Logger != nil {
				p.Logger.Warn("marking ledger entry complete", "path", r.Path, "error", err)
			}
		}
		return nil
	})
}

// reserve picks a post path that neither exists on disk nor is being
// claimed earlier in this run, adding -2, -3, ... to the name as needed.
func (p *Publisher) reserve(base string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reserved == nil {
		p.reserved = make(map[string]bool)
	}
	for i := 1; i < 1000; i++ {
		name := base
		if i > 1 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(p.PostsDir, name+".md")
		if p.reserved[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		p.reserved[path] = true
		return path, nil
	}
	return "", fmt.Errorf("no free post name for %s", base)
}

// archive moves src into dir, keeping its name unless that is taken.
// Sources with the same base name are archived concurrently, so the name
// is picked and claimed under p.mu.
func (p *Publisher) archive(src, dir string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return moveInto(src, dir)
}

func moveInto(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(src)
	dst := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	for i := 2; ; i++ {
		if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
			break
		}
		dst = filepath.Join(dir, strings.TrimSuffix(name, ext)+"-"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename fails across filesystems; fall back to copy and remove.
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := atomicfile.Write(context.Background(), dst, f, 0o644); err != nil {
		return "", err
	}
	return dst, os.Remove(src)
}

package stage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/markup"
)

const maxTags = 10

// Optimizer derives the title, slug, summary and tags and tidies the
// document structure.
type Optimizer struct {
	gate
	Keywords markup.Keywords
}

// NewOptimizer returns the read -> optimized stage.
func NewOptimizer(kw markup.Keywords) *Optimizer {
	return &Optimizer{gate: newGate("optimize", document.StatusRead, document.StatusOptimized), Keywords: kw}
}

func (o *Optimizer) Apply(_ context.Context, rec document.Record) document.Record {
	return o.apply(rec, o.Accepts(rec.Status), func(r *document.Record) error {
		if strings.TrimSpace(r.Body) == "" {
			return errors.New("document is empty")
		}
		stem := strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename))
		if r.OriginalTitle == "" {
			r.OriginalTitle = markup.ExtractTitle(r.Body)
		}
		if r.OriginalTitle == "" {
			r.OriginalTitle = stem
		}
		r.Title = markup.OptimizeTitle(r.OriginalTitle, o.Keywords)
		if r.Title == "" {
			r.Title = r.OriginalTitle
		}
		r.Slug = slugFor(r.Title, r.Filename)
		r.Body = markup.NormalizeStructure(r.Body)
		r.Summary = markup.Summary(r.Body)
		r.Tags = mergeTags(r.Tags, markup.Tags(r.Title, r.Body, o.Keywords, maxTags))
		return nil
	})
}

// slugFor derives a slug from the title, falling back to the file name.
func slugFor(title, filename string) string {
	if s := markup.Slug(title); s != "" {
		return s
	}
	if s := markup.Slug(strings.TrimSuffix(filename, filepath.Ext(filename))); s != "" {
		return s
	}
	return "post"
}

// mergeTags keeps existing tags first and drops case-insensitive duplicates.
func mergeTags(have, found []string) []string {
	out := slices.Clone(have)
	for _, t := range found {
		if !slices.ContainsFunc(out, func(h string) bool { return strings.EqualFold(h, t) }) {
			out = append(out, t)
		}
	}
	if len(out) > maxTags {
		out = out[:maxTags]
	}
	return out
}

// Enhancer adds the blog metadata: category, excerpt, reading time and a
// table of contents.
type Enhancer struct {
	gate
	Keywords markup.Keywords
}

// NewEnhancer returns the optimized -> enhanced stage.
func NewEnhancer(kw markup.Keywords) *Enhancer {
	return &Enhancer{gate: newGate("enhance", document.StatusOptimized, document.StatusEnhanced), Keywords: kw}
}

func (e *Enhancer) Apply(_ context.Context, rec document.Record) document.Record {
	return e.apply(rec, e.Accepts(rec.Status), func(r *document.Record) error {
		r.Category = markup.Category(r.Title, r.Tags, r.Body, e.Keywords)
		r.Excerpt = markup.Excerpt(r.Body)
		r.ReadingTime = markup.ReadingTime(r.Body)
		r.Body = markup.TableOfContents(r.Body)
		return nil
	})
}

// Reviewer corrects terminology, punctuation and Markdown syntax and
// records factual warnings.
type Reviewer struct {
	gate
}

// NewReviewer returns the enhanced -> reviewed stage.
func NewReviewer() *Reviewer {
	return &Reviewer{gate: newGate("review", document.StatusEnhanced, document.StatusReviewed)}
}

func (v *Reviewer) Apply(_ context.Context, rec document.Record) document.Record {
	return v.apply(rec, v.Accepts(rec.Status), func(r *document.Record) error {
		if !utf8.ValidString(r.Body) {
			return errors.New("body is not valid UTF-8")
		}
		body, corrections, warnings := markup.Review(r.Body)
		r.Body = body
		r.Corrections = append(r.Corrections, corrections...)
		r.Warnings = append(r.Warnings, warnings...)
		return nil
	})
}

package stage

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/redact"
)

// Record fields the privacy stage scans.
const (
	FieldBody    = "body"
	FieldTitle   = "title"
	FieldSummary = "summary"
	FieldExcerpt = "excerpt"
	FieldTags    = "tags"
)

// Privacy redacts secrets and personal data from every published field
// and records what it found.
type Privacy struct {
	gate
	Scanner *cache.Scanner
	Logger  *slog.Logger
}

// NewPrivacy returns the reviewed -> privacy_checked stage.
func NewPrivacy(sc *cache.Scanner, log *slog.Logger) *Privacy {
	return &Privacy{gate: newGate("privacy", document.StatusReviewed, document.StatusPrivacyChecked), Scanner: sc, Logger: log}
}

func (p *Privacy) Apply(ctx context.Context, rec document.Record) document.Record {
	return p.apply(rec, p.Accepts(rec.Status), func(r *document.Record) error {
		if p.Scanner == nil || p.Scanner.Engine == nil {
			return errors.New("privacy scanner is not configured")
		}
		var dets []redact.Detection
		scan := func(field string, text *string) {
			if *text == "" {
				return
			}
			res := p.Scanner.Scan(ctx, field, *text)
			*text = res.Text
			for _, d := range res.Detections {
				d.Repeat = field != FieldBody && inBody(dets, d)
				dets = append(dets, d)
			}
		}
		scan(FieldBody, &r.Body)
		scan(FieldTitle, &r.Title)
		scan(FieldSummary, &r.Summary)
		scan(FieldExcerpt, &r.Excerpt)
		for i := range r.Tags {
			scan(FieldTags+"["+strconv.Itoa(i)+"]", &r.Tags[i])
		}

		r.Detections = dets
		r.SeverityCounts = redact.ComputeCounts(dets)
		r.HasCritical = r.SeverityCounts.Critical > 0
		if len(dets) > 0 && p.Logger != nil {
			p.Logger.Info("redacted sensitive content", "path", r.Path,
				"detections", len(dets), "critical", r.SeverityCounts.Critical)
		}
		return nil
	})
}

// inBody reports whether the body already produced a detection of the same
// rule over a value of the same length. Title, summary, excerpt and tags
// are drawn from the body, so such a match is the same secret.
func inBody(dets []redact.Detection, d redact.Detection) bool {
	for _, b := range dets {
		if b.Field == FieldBody && b.Category == d.Category && b.Rule == d.Rule && b.Length == d.Length {
			return true
		}
	}
	return false
}

// Package stage defines the status-gated transformation stages and the
// runner that moves checkpoints through them.
//
// A stage only ever touches records whose status it accepts; everything
// else passes through unchanged. That is what lets the pipeline skip an
// optional stage without confusing the ones after it.
package stage

import (
	"context"
	"time"

	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/document"
)

// Stage is one checkpoint-to-checkpoint transformation.
type Stage interface {
	Name() string
	Suffix() checkpoint.Suffix
	Precondition() document.Status
	Postcondition() document.Status
	Accepts(document.Status) bool
	// Apply returns rec unchanged when Accepts(rec.Status) is false.
	Apply(ctx context.Context, rec document.Record) document.Record
}

// gate carries the identity and status wiring shared by every stage.
type gate struct {
	name   string
	suffix checkpoint.Suffix
	pre    document.Status
	post   document.Status
	now    func() time.Time
}

func newGate(name string, pre, post document.Status) gate {
	return gate{name: name, suffix: checkpoint.SuffixFor(post), pre: pre, post: post, now: time.Now}
}

func (g gate) Name() string                   { return g.name }
func (g gate) Suffix() checkpoint.Suffix      { return g.suffix }
func (g gate) Precondition() document.Status  { return g.pre }
func (g gate) Postcondition() document.Status { return g.post }
func (g gate) Accepts(s document.Status) bool { return s == g.pre }
func (g gate) failure() document.Status       { return g.post.Failure() }
func (g *gate) SetClock(now func() time.Time) { g.now = now }
func (g gate) clock() time.Time               { return g.now() }

// apply runs fn on a copy of rec and advances it, or fails it with fn's
// error. A record the stage does not accept comes back untouched.
func (g gate) apply(rec document.Record, accepts bool, fn func(*document.Record) error) document.Record {
	if !accepts {
		return rec
	}
	out := rec.Clone()
	if err := fn(&out); err != nil {
		failed := rec.Clone()
		_ = failed.Fail(g.name, g.failure(), err.Error(), g.clock())
		return failed
	}
	if err := out.Advance(g.name, g.post, g.clock()); err != nil {
		failed := rec.Clone()
		_ = failed.Fail(g.name, g.failure(), err.Error(), g.clock())
		return failed
	}
	return out
}

// Rebase returns a stage that consumes records in status pre instead of
// its natural precondition. The pipeline uses it when an earlier optional
// stage is skipped.
func Rebase(s Stage, pre document.Status) Stage {
	if s.Precondition() == pre {
		return s
	}
	return rebased{Stage: s, pre: pre}
}

type rebased struct {
	Stage
	pre document.Status
}

func (r rebased) Precondition() document.Status  { return r.pre }
func (r rebased) Accepts(s document.Status) bool { return s == r.pre }

func (r rebased) Apply(ctx context.Context, rec document.Record) document.Record {
	if !r.Accepts(rec.Status) {
		return rec
	}
	in := rec
	in.Status = r.Stage.Precondition()
	out := r.Stage.Apply(ctx, in)
	if out.Status == in.Status {
		return rec
	}
	return out
}

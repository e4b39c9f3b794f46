package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/logging"
)

// Stats summarizes one stage run.
type Stats struct {
	Stage    string        `json:"stage"`
	Batches  int           `json:"batches"`
	Records  int           `json:"records"`
	Applied  int           `json:"applied"`
	Advanced int           `json:"advanced"`
	Failed   int           `json:"failed"`
	Reused   int           `json:"reused"`
	Duration time.Duration `json:"duration"`
}

// Runner drives a stage over checkpoints. Records within a batch are
// processed in parallel; batches run one after another and each batch's
// output is written only after all of its records are done.
type Runner struct {
	Store       checkpoint.Store
	Concurrency int
	Logger      *slog.Logger
	// Observe, if set, is called after each output checkpoint is written.
	Observe func(ctx context.Context, s Stage, key checkpoint.Key, recs []document.Record)
}

// Run applies s to every batch in keys and returns the output keys in the
// same order. An output checkpoint that already exists is reused rather
// than recomputed, so an interrupted run can be repeated safely.
//
// Cancellation is checked between batches. A batch that has started is
// always finished and written.
func (r *Runner) Run(ctx context.Context, s Stage, keys []checkpoint.Key) ([]checkpoint.Key, Stats, error) {
	log := r.logger().With("stage", s.Name())
	stats := Stats{Stage: s.Name()}
	t0 := time.Now()

	out := make([]checkpoint.Key, 0, len(keys))
	for _, in := range keys {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(t0)
			return out, stats, fmt.Errorf("%s: %w", s.Name(), err)
		}
		key, err := r.runBatch(context.WithoutCancel(ctx), log, s, in, &stats)
		if err != nil {
			stats.Duration = time.Since(t0)
			return out, stats, fmt.Errorf("%s: %w", s.Name(), err)
		}
		out = append(out, key)
	}
	stats.Duration = time.Since(t0)
	return out, stats, nil
}

func (r *Runner) runBatch(ctx context.Context, log *slog.Logger, s Stage, in checkpoint.Key, stats *Stats) (checkpoint.Key, error) {
	outKey := in.WithSuffix(s.Suffix())
	stats.Batches++

	if existing, err := r.Store.Load(ctx, outKey); err == nil {
		log.Info("reusing existing checkpoint", "checkpoint", outKey.Name(), "records", len(existing))
		stats.Reused++
		stats.Records += len(existing)
		return outKey, nil
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return checkpoint.Key{}, fmt.Errorf("checking %s: %w", outKey.Name(), err)
	}

	timer := logging.Start(log, "batch", "checkpoint", in.Name())
	recs, err := r.Store.Load(ctx, in)
	if err != nil {
		timer.Fail(err)
		return checkpoint.Key{}, fmt.Errorf("loading %s: %w", in.Name(), err)
	}

	results := make([]document.Record, len(recs))
	var g errgroup.Group
	g.SetLimit(max(1, r.Concurrency))
	for i := range recs {
		g.Go(func() error {
			results[i] = r.applyOne(ctx, log, s, recs[i])
			return nil
		})
	}
	_ = g.Wait()

	var applied, advanced, failed int
	for i := range recs {
		if !s.Accepts(recs[i].Status) {
			continue
		}
		applied++
		switch {
		case results[i].Status == s.Postcondition():
			advanced++
		case results[i].Status.Failed():
			failed++
			log.Warn("record failed", "path", results[i].Path, "status", results[i].Status, "error", results[i].Error)
		}
	}

	if err := r.Store.Save(ctx, outKey, results); err != nil {
		timer.Fail(err)
		return checkpoint.Key{}, fmt.Errorf("saving %s: %w", outKey.Name(), err)
	}
	timer.Finish("output", outKey.Name(), "records", len(recs), "applied", applied, "failed", failed)

	stats.Records += len(recs)
	stats.Applied += applied
	stats.Advanced += advanced
	stats.Failed += failed
	if r.Observe != nil {
		r.Observe(ctx, s, outKey, results)
	}
	return outKey, nil
}

// applyOne isolates a panicking stage to the record that triggered it.
func (r *Runner) applyOne(ctx context.Context, log *slog.Logger, s Stage, rec document.Record) (out document.Record) {
	if !s.Accepts(rec.Status) {
		return rec
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("stage panicked", "path", rec.Path, "panic", p)
			out = rec.Clone()
			_ = out.Fail(s.Name(), s.Postcondition().Failure(), fmt.Sprintf("panic: %v", p), time.Now())
		}
	}()
	return s.Apply(ctx, rec)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

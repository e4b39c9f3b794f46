// Package pipeline sequences the stages over a run's checkpoints and
// decides when a run is done, skipped ahead or aborted.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/scribe/internal/atomicfile"
	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/ledger"
	"github.com/dshills/scribe/internal/logging"
	"github.com/dshills/scribe/internal/markup"
	"github.com/dshills/scribe/internal/report"
	"github.com/dshills/scribe/internal/stage"
)

// State is a pipeline state.
type State string

const (
	StateIdle            State = "idle"
	StateReading         State = "reading"
	StateOptimizing      State = "optimizing"
	StateEnhancing       State = "enhancing"
	StateReviewing       State = "reviewing"
	StatePrivacyChecking State = "privacy_checking"
	StateFormatChecking  State = "format_checking"
	StatePublishing      State = "publishing"
	StateCleanup         State = "cleanup"
	StateDone            State = "done"
	StateAborted         State = "aborted"
)

var (
	// ErrCriticalPrivacy aborts a run in which any record carries a critical
	// detection. The whole run is blocked, not just the offending document.
	ErrCriticalPrivacy = errors.New("blocked by critical privacy issue")
	// ErrStageFailed wraps a stage-level failure such as an unreadable or
	// unwritable checkpoint.
	ErrStageFailed = errors.New("stage failed")
)

// Report is the outcome of one run.
type Report = report.Run

// Site publishes the generated posts; see package site.
type Site interface {
	Preview(ctx context.Context) error
	Deploy(ctx context.Context) error
}

// Pipeline runs the stages configured in Config.
type Pipeline struct {
	Config   config.Config
	Store    checkpoint.Store
	Ledger   ledger.Ledger
	Scanner  *cache.Scanner
	Keywords markup.Keywords
	Site     Site
	Logger   *slog.Logger
	Now      func() time.Time
	// OnState, if set, is called on every state change.
	OnState func(State)

	mu    sync.Mutex
	state State
}

type step struct {
	state   State
	stage   stage.Stage
	skipped bool
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return StateIdle
	}
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.logger().Debug("state", "state", s)
	if p.OnState != nil {
		p.OnState(s)
	}
}

// plan builds the stages that follow checkpoints with suffix from. A
// skipped stage's successor is rebased onto the last status actually
// produced.
func (p *Pipeline) plan(from checkpoint.Suffix) ([]step, error) {
	last, err := document.ParseStatus(from.Stage())
	if err != nil {
		return nil, err
	}
	log := p.logger()
	publisher := stage.NewPublisher(p.Config.PostsDir, p.Config.ArchiveDir, p.Ledger, logging.Component(log, "publish"))
	publisher.Cover = markup.DefaultCover
	all := []step{
		{state: StateOptimizing, stage: stage.NewOptimizer(p.Keywords)},
		{state: StateEnhancing, stage: stage.NewEnhancer(p.Keywords)},
		{state: StateReviewing, stage: stage.NewReviewer()},
		{state: StatePrivacyChecking, stage: stage.NewPrivacy(p.Scanner, logging.Component(log, "privacy"))},
		{state: StateFormatChecking, stage: stage.NewFormatCheck(logging.Component(log, "format"))},
		{state: StatePublishing, stage: publisher},
	}
	if p.Now != nil {
		for _, st := range all {
			if c, ok := st.stage.(interface{ SetClock(func() time.Time) }); ok {
				c.SetClock(p.Now)
			}
		}
	}
	fromRank := last.Rank()
	var out []step
	for _, st := range all {
		s := st.stage
		if s.Postcondition().Rank() <= fromRank {
			continue
		}
		if p.Config.Skips(s.Name()) {
			st.skipped = true
			out = append(out, st)
			continue
		}
		if s.Name() != "publish" {
			st.stage = stage.Rebase(s, last)
		}
		last = s.Postcondition()
		out = append(out, st)
	}
	return out, nil
}

// Run reads the inbox and takes every new document through the stages.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	rep := p.newReport()
	log := p.logger().With("run_id", rep.RunID)
	log.Info("run started", "inbox", p.Config.InboxDir)

	p.setState(StateReading)
	rd := &stage.Reader{
		InboxDir:    p.Config.InboxDir,
		ArchiveDir:  p.Config.ArchiveDir,
		Extensions:  p.Config.Extensions,
		RedactPaths: p.Config.Privacy.RedactPaths,
		BatchSize:   p.Config.BatchSize,
		Ledger:      p.Ledger,
		Store:       p.Store,
		Logger:      logging.Component(log, "read"),
		Now:         p.Now,
	}
	t := logging.Start(log, "read")
	res, err := rd.Read(ctx)
	if err != nil {
		t.Fail(err)
		if ctx.Err() != nil {
			return p.abort(ctx, rep, nil, ctx.Err())
		}
		return p.abort(ctx, rep, res.Keys, fmt.Errorf("%w: read: %w", ErrStageFailed, err))
	}
	t.Finish("documents", res.Total, "failed", res.Failed, "skipped", res.Skipped, "batches", len(res.Keys))
	if res.Total == 0 {
		log.Info("no new documents")
		return p.finish(rep, nil)
	}
	return p.runFrom(ctx, rep, res.Keys, checkpoint.SuffixRead)
}

// Resume continues the latest run from its checkpoints with suffix from,
// running only the stages after it.
func (p *Pipeline) Resume(ctx context.Context, from checkpoint.Suffix) (*Report, error) {
	keys, err := p.Store.List(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("listing %s checkpoints: %w", from.Stage(), err)
	}
	keys = checkpoint.LatestRun(keys)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no %s checkpoints to resume from: %w", from.Stage(), checkpoint.ErrNotFound)
	}
	rep := p.newReport()
	p.logger().Info("resuming run", "run_id", rep.RunID, "from", from.Stage(), "batches", len(keys))
	return p.runFrom(ctx, rep, keys, from)
}

func (p *Pipeline) runFrom(ctx context.Context, rep *Report, keys []checkpoint.Key, from checkpoint.Suffix) (*Report, error) {
	log := p.logger().With("run_id", rep.RunID)
	written := slices.Clone(keys)
	runner := &stage.Runner{
		Store:       p.Store,
		Concurrency: p.Config.Concurrency,
		Logger:      log,
		Observe:     p.observe,
	}
	steps, err := p.plan(from)
	if err != nil {
		return p.abort(ctx, rep, keys, err)
	}
	// Checkpoints past privacy carry their detections; a resume from them
	// meets the same gate as the run that wrote them.
	if fromStatus, _ := document.ParseStatus(from.Stage()); fromStatus.Rank() >= document.StatusPrivacyChecked.Rank() {
		if err := p.privacyGate(ctx, rep, keys); err != nil {
			return p.abort(ctx, rep, keys, err)
		}
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return p.abort(ctx, rep, keys, err)
		}
		p.setState(st.state)
		if st.skipped {
			log.Info("stage skipped", "stage", st.stage.Name())
			rep.Stages = append(rep.Stages, report.StageStat{Name: st.stage.Name(), Skipped: true})
			continue
		}

		out, stats, err := runner.Run(ctx, st.stage, keys)
		written = append(written, out...)
		rep.Stages = append(rep.Stages, stageStat(stats))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return p.abort(ctx, rep, keys, err)
			}
			return p.abort(ctx, rep, keys, fmt.Errorf("%w: %w", ErrStageFailed, err))
		}
		keys = out

		if st.state == StatePrivacyChecking {
			if err := p.privacyGate(ctx, rep, keys); err != nil {
				return p.abort(ctx, rep, keys, err)
			}
		}
	}

	recs, err := p.load(ctx, keys)
	if err != nil {
		return p.abort(ctx, rep, keys, fmt.Errorf("%w: %w", ErrStageFailed, err))
	}
	rep.Tally(recs)

	if p.Site != nil && rep.PublishedDocuments > 0 {
		p.publishSite(ctx, rep)
	}

	p.setState(StateCleanup)
	if p.Config.KeepCheckpoints {
		return p.finish(rep, written)
	}
	p.cleanup(ctx, written, keys)
	return p.finish(rep, keys)
}

// privacyGate builds the run's detection report from keys and fails with
// ErrCriticalPrivacy if any document holds a critical detection.
func (p *Pipeline) privacyGate(ctx context.Context, rep *Report, keys []checkpoint.Key) error {
	recs, err := p.load(ctx, keys)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStageFailed, err)
	}
	rep.Privacy = report.BuildDetections(recs, p.now())
	p.writeJSON("privacy_"+rep.RunID+".json", rep.Privacy)
	n := rep.Privacy.SeverityBreakdown.Critical
	if n == 0 {
		return nil
	}
	docs := 0
	for _, d := range rep.Privacy.Documents {
		if d.HasCritical {
			docs++
		}
	}
	return fmt.Errorf("%w: %d critical detections in %d documents", ErrCriticalPrivacy, n, docs)
}

func (p *Pipeline) publishSite(ctx context.Context, rep *Report) {
	log := p.logger()
	if p.Config.Site.Preview {
		if err := p.Site.Preview(ctx); err != nil {
			log.Warn("site preview failed", "error", err)
			rep.Warnings = append(rep.Warnings, err.Error())
		}
	}
	if p.Config.Site.Deploy {
		if err := p.Site.Deploy(ctx); err != nil {
			log.Warn("site deploy failed", "error", err)
			rep.Warnings = append(rep.Warnings, err.Error())
		}
	}
}

// observe mirrors each record's progress into the ledger.
func (p *Pipeline) observe(ctx context.Context, s stage.Stage, _ checkpoint.Key, recs []document.Record) {
	if p.Ledger == nil {
		return
	}
	for _, r := range recs {
		if r.Status != s.Postcondition() {
			continue
		}
		if err := p.Ledger.AddStage(ctx, r.Path, string(r.Status)); err != nil {
			p.logger().Debug("ledger stage not recorded", "path", r.Path, "error", err)
		}
	}
}

// cleanup deletes every checkpoint of the run except the final ones.
// Failures are logged only.
func (p *Pipeline) cleanup(ctx context.Context, written, final []checkpoint.Key) {
	log := p.logger()
	n := 0
	for _, k := range written {
		if slices.Contains(final, k) {
			continue
		}
		if err := p.Store.Delete(ctx, k); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
			log.Warn("checkpoint cleanup failed", "checkpoint", k.Name(), "error", err)
			continue
		}
		n++
	}
	log.Debug("cleaned up checkpoints", "deleted", n)
}

func (p *Pipeline) load(ctx context.Context, keys []checkpoint.Key) ([]document.Record, error) {
	var all []document.Record
	for _, k := range keys {
		recs, err := p.Store.Load(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", k.Name(), err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

func (p *Pipeline) abort(ctx context.Context, rep *Report, keys []checkpoint.Key, cause error) (*Report, error) {
	p.setState(StateAborted)
	rep.Abort = cause.Error()
	if recs, err := p.load(context.WithoutCancel(ctx), keys); err == nil && len(recs) > 0 {
		rep.Tally(recs)
	}
	rep.Checkpoints = names(keys)
	rep.Finish(string(StateAborted), p.now())
	p.logger().Error("run aborted", "run_id", rep.RunID, "error", cause)
	p.writeJSON("run_"+rep.RunID+".json", rep)
	return rep, cause
}

// finish records the checkpoints left on disk and completes the report.
func (p *Pipeline) finish(rep *Report, kept []checkpoint.Key) (*Report, error) {
	p.setState(StateDone)
	rep.Checkpoints = names(kept)
	rep.Finish(string(StateDone), p.now())
	p.logger().Info("run finished", "run_id", rep.RunID,
		"documents", rep.TotalDocuments, "published", rep.PublishedDocuments,
		"errors", len(rep.Errors), "success", rep.Success)
	p.writeJSON("run_"+rep.RunID+".json", rep)
	return rep, nil
}

// writeJSON stores a report under the report directory; failures are
// logged only.
func (p *Pipeline) writeJSON(name string, v any) {
	if p.Config.WorkDir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		err = atomicfile.WriteFile(context.Background(), filepath.Join(p.Config.ReportDir(), name), data, 0o644)
	}
	if err != nil {
		p.logger().Warn("writing report failed", "file", name, "error", err)
	}
}

func (p *Pipeline) newReport() *Report {
	at := p.now()
	return &Report{
		RunID:     ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		State:     string(StateIdle),
		StartedAt: at,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

func stageStat(s stage.Stats) report.StageStat {
	return report.StageStat{
		Name:       s.Stage,
		Batches:    s.Batches,
		Records:    s.Records,
		Advanced:   s.Advanced,
		Failed:     s.Failed,
		Reused:     s.Reused,
		DurationMs: s.Duration.Milliseconds(),
	}
}

func names(keys []checkpoint.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Name())
	}
	return out
}

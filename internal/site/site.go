// Package site drives the static-site generator that turns published posts
// into a site: a local preview server or a remote deploy.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/logging"
)

// Runner runs generator subcommands (clean, generate, server, deploy) as
// external processes in the site root.
type Runner struct {
	Command    string
	Args       []string
	Root       string
	PreviewFor time.Duration
	// Retries is how many more times a failed deploy is attempted.
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger

	exec func(ctx context.Context, dir, name string, args ...string) (string, error)
}

// New returns a Runner for cfg.
func New(cfg config.SiteConfig, log *slog.Logger) *Runner {
	return &Runner{
		Command:    cfg.Command,
		Args:       slices.Clone(cfg.Args),
		Root:       cfg.Root,
		PreviewFor: time.Duration(cfg.PreviewSeconds) * time.Second,
		Retries:    cfg.DeployRetries,
		Backoff:    time.Second,
		Logger:     log,
	}
}

// Generate rebuilds the site from scratch.
func (r *Runner) Generate(ctx context.Context) error {
	if err := r.step(ctx, "clean"); err != nil {
		return err
	}
	return r.step(ctx, "generate")
}

// Preview generates the site and runs the local server for PreviewFor.
// Reaching the end of the preview window is not an error.
func (r *Runner) Preview(ctx context.Context) error {
	if err := r.Generate(ctx); err != nil {
		return err
	}
	if r.PreviewFor <= 0 {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, r.PreviewFor)
	defer cancel()
	err := r.step(pctx, "server")
	if err != nil && errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil
	}
	return err
}

// Deploy generates the site and publishes it. The deploy step itself is
// retried with backoff.
func (r *Runner) Deploy(ctx context.Context) error {
	if err := r.Generate(ctx); err != nil {
		return err
	}
	return retryWithBackoff(ctx, r.Retries, r.Backoff, func() error {
		return r.step(ctx, "deploy")
	})
}

func (r *Runner) step(ctx context.Context, sub string) error {
	if r.Command == "" {
		return errors.New("site command is not configured")
	}
	args := append(slices.Clone(r.Args), sub)
	log := r.Logger
	if log == nil {
		log = logging.Discard()
	}
	t := logging.Start(logging.Component(log, "site"), "site "+sub, "command", r.Command+" "+strings.Join(args, " "))
	run := r.exec
	if run == nil {
		run = commandOutput
	}
	out, err := run(ctx, r.Root, r.Command, args...)
	if err != nil {
		t.Fail(err)
		return fmt.Errorf("site %s: %w", sub, err)
	}
	t.Finish("output_bytes", len(out))
	return nil
}

func commandOutput(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

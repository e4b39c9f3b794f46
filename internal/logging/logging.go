// Package logging builds the structured logger and the start/finish/error
// event helpers the pipeline components use.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// New returns a logger writing to w. format is "text" or "json".
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Component tags every record from the returned logger with its component.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}

// Timer measures one unit of work between its start and finish events.
type Timer struct {
	l     *slog.Logger
	msg   string
	attrs []any
	t0    time.Time
}

// Start logs a phase=start event and returns a timer for the matching
// finish or error event. attrs are repeated on every event.
func Start(l *slog.Logger, msg string, attrs ...any) *Timer {
	l.Info(msg, append([]any{"phase", "start"}, attrs...)...)
	return &Timer{l: l, msg: msg, attrs: attrs, t0: time.Now()}
}

// Finish logs a phase=finish event with the elapsed time.
func (t *Timer) Finish(attrs ...any) time.Duration {
	d := time.Since(t.t0)
	t.l.Info(t.msg, t.event("finish", d, attrs)...)
	return d
}

// Fail logs a phase=error event with the elapsed time and err.
func (t *Timer) Fail(err error, attrs ...any) time.Duration {
	d := time.Since(t.t0)
	t.l.Error(t.msg, t.event("error", d, append(attrs, "error", err))...)
	return d
}

func (t *Timer) event(phase string, d time.Duration, extra []any) []any {
	out := make([]any, 0, len(t.attrs)+len(extra)+4)
	out = append(out, "phase", phase, "dur_ms", d.Milliseconds())
	out = append(out, t.attrs...)
	return append(out, extra...)
}

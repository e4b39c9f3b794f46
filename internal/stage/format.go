package stage

import (
	"context"
	"log/slog"

	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/markup"
)

// FormatCheck lints the final body. It never changes the text and never
// fails a record; issues are stored and logged.
type FormatCheck struct {
	gate
	Logger *slog.Logger
}

// NewFormatCheck returns the privacy_checked -> format_checked stage.
func NewFormatCheck(log *slog.Logger) *FormatCheck {
	return &FormatCheck{gate: newGate("format", document.StatusPrivacyChecked, document.StatusFormatChecked), Logger: log}
}

func (f *FormatCheck) Apply(_ context.Context, rec document.Record) document.Record {
	return f.apply(rec, f.Accepts(rec.Status), func(r *document.Record) error {
		r.FormatIssues = markup.Lint(r.Body)
		if f.Logger != nil {
			for _, is := range r.FormatIssues {
				f.Logger.Debug("format issue", "path", r.Path, "line", is.Line, "rule", is.Rule, "message", is.Message)
			}
			if n := len(r.FormatIssues); n > 0 {
				f.Logger.Info("format issues found", "path", r.Path, "issues", n)
			}
		}
		return nil
	})
}

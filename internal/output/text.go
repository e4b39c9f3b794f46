package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/report"
)

// TextWriter outputs a human-readable terminal summary.
type TextWriter struct{}

var severityOrder = []redact.Severity{
	redact.SeverityCritical, redact.SeverityHigh, redact.SeverityMedium, redact.SeverityLow,
}

func (t *TextWriter) WriteRun(w io.Writer, r *report.Run) error {
	ew := &errWriter{w: w}

	ew.printf("scribe run %s: %s\n", r.RunID, r.State)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Documents: %s total, %s processed, %s published\n",
		humanize.Comma(int64(r.TotalDocuments)),
		humanize.Comma(int64(r.ProcessedDocuments)),
		humanize.Comma(int64(r.PublishedDocuments)))
	dur := time.Duration(r.DurationSeconds * float64(time.Second)).Round(time.Millisecond)
	ew.printf("Duration: %s (finished %s)\n", dur, r.FinishedAt.Format(time.DateTime))
	ew.println(strings.Repeat("─", 60))

	if len(r.Stages) > 0 {
		ew.println("\nStages")
		for _, s := range r.Stages {
			if s.Skipped {
				ew.printf("  %-10s skipped\n", s.Name)
				continue
			}
			ew.printf("  %-10s %3d advanced  %3d failed  %s\n",
				s.Name, s.Advanced, s.Failed, time.Duration(s.DurationMs)*time.Millisecond)
		}
	}

	if r.Privacy != nil && r.Privacy.TotalDetections > 0 {
		c := r.Privacy.SeverityBreakdown
		ew.printf("\nPrivacy: %s redactions in %d documents (%d critical, %d high, %d medium, %d low)\n",
			humanize.Comma(int64(r.Privacy.TotalDetections)), r.Privacy.DocumentsWithIssues,
			c.Critical, c.High, c.Medium, c.Low)
	}

	if len(r.Posts) > 0 {
		ew.println("\nPublished")
		for _, p := range r.Posts {
			ew.printf("  %s\n", p)
		}
	}

	if len(r.Errors) > 0 {
		ew.println("\nErrors")
		for _, e := range r.Errors {
			ew.printf("  %s  [%s]\n", e.Path, e.Status)
			for _, line := range wrapText(e.Error, 70) {
				ew.printf("    %s\n", line)
			}
		}
	}
	if r.Abort != "" {
		ew.printf("\nAborted: %s\n", r.Abort)
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	if r.Success {
		ew.println("Run succeeded.")
	} else {
		ew.println("Run failed.")
	}
	return ew.err
}

func (t *TextWriter) WriteDetections(w io.Writer, d *report.Detections) error {
	ew := &errWriter{w: w}
	c := d.SeverityBreakdown
	ew.printf("Detections: %s total", humanize.Comma(int64(d.TotalDetections)))
	if d.TotalDetections > 0 {
		ew.printf(" (%d critical, %d high, %d medium, %d low)", c.Critical, c.High, c.Medium, c.Low)
	}
	ew.println("")
	if d.TotalDetections == 0 {
		ew.println("Nothing to redact.")
		return ew.err
	}

	for _, sev := range severityOrder {
		var lines []string
		for _, doc := range d.Documents {
			for _, det := range doc.Detections {
				if det.Severity != sev {
					continue
				}
				loc := doc.Path
				if det.Field != "" && det.Field != "body" {
					loc += " (" + det.Field + ")"
				}
				lines = append(lines, fmt.Sprintf("  %s:%d  %s/%s  %s", loc, det.Line, det.Category, det.Rule, det.Replacement))
			}
		}
		if len(lines) == 0 {
			continue
		}
		slices.Sort(lines)
		ew.printf("\n%s %s\n", severityIcon(sev), strings.ToUpper(string(sev)))
		for _, l := range lines {
			ew.println(l)
		}
	}
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityIcon(s redact.Severity) string {
	switch s {
	case redact.SeverityCritical:
		return "[!!!]"
	case redact.SeverityHigh:
		return "[!!]"
	case redact.SeverityMedium:
		return "[!]"
	case redact.SeverityLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

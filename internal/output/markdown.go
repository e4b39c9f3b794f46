package output

import (
	"io"
	"strings"

	"github.com/dshills/scribe/internal/report"
)

// MarkdownWriter outputs a Markdown summary with collapsible detail
// sections.
type MarkdownWriter struct{}

func (m *MarkdownWriter) WriteRun(w io.Writer, r *report.Run) error {
	ew := &errWriter{w: w}
	ew.printf("## scribe run `%s`\n\n", r.RunID)
	ew.println("| | |")
	ew.println("|---|---|")
	ew.printf("| State | %s |\n", r.State)
	ew.printf("| Documents | %d |\n", r.TotalDocuments)
	ew.printf("| Processed | %d |\n", r.ProcessedDocuments)
	ew.printf("| Published | %d |\n", r.PublishedDocuments)
	ew.printf("| Errors | %d |\n", len(r.Errors))
	ew.printf("| Duration | %.1fs |\n\n", r.DurationSeconds)

	if len(r.Stages) > 0 {
		ew.println("| Stage | Advanced | Failed |")
		ew.println("|-------|----------|--------|")
		for _, s := range r.Stages {
			if s.Skipped {
				ew.printf("| %s | skipped | |\n", s.Name)
				continue
			}
			ew.printf("| %s | %d | %d |\n", s.Name, s.Advanced, s.Failed)
		}
		ew.println("")
	}

	if len(r.Errors) > 0 {
		ew.printf("<details>\n<summary>Errors (%d)</summary>\n\n", len(r.Errors))
		for _, e := range r.Errors {
			ew.printf("- `%s` (%s): %s\n", e.Path, e.Status, mdEscape(e.Error))
		}
		ew.println("\n</details>\n")
	}
	if r.Privacy != nil && r.Privacy.TotalDetections > 0 {
		ew.err = m.writeDetections(ew, r.Privacy)
	}
	if r.Success {
		ew.println("Run succeeded. :white_check_mark:")
	} else {
		ew.println("Run failed. :x:")
	}
	return ew.err
}

func (m *MarkdownWriter) WriteDetections(w io.Writer, d *report.Detections) error {
	ew := &errWriter{w: w}
	ew.println("## Privacy detections\n")
	if d.TotalDetections == 0 {
		ew.println("Nothing to redact. :white_check_mark:")
		return ew.err
	}
	return m.writeDetections(ew, d)
}

func (m *MarkdownWriter) writeDetections(ew *errWriter, d *report.Detections) error {
	c := d.SeverityBreakdown
	ew.println("| Severity | Count |")
	ew.println("|----------|-------|")
	ew.printf("| Critical | %d |\n", c.Critical)
	ew.printf("| High | %d |\n", c.High)
	ew.printf("| Medium | %d |\n", c.Medium)
	ew.printf("| Low | %d |\n", c.Low)
	ew.printf("| **Total** | **%d** |\n\n", d.TotalDetections)

	for _, doc := range d.Documents {
		ew.printf("<details>\n<summary>%s (%d)</summary>\n\n", mdEscape(doc.Path), len(doc.Detections))
		for _, det := range doc.Detections {
			field := ""
			if det.Field != "" {
				field = " in " + det.Field
			}
			ew.printf("- line %d%s: **%s** %s `%s`\n", det.Line, field, det.Severity, det.Category, det.Rule)
		}
		ew.println("\n</details>\n")
	}
	return ew.err
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;").Replace(s)
}

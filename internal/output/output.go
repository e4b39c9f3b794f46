package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/scribe/internal/report"
)

// Writer renders reports in one format.
type Writer interface {
	WriteRun(w io.Writer, r *report.Run) error
	WriteDetections(w io.Writer, d *report.Detections) error
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "markdown", "sarif"}

// GetWriter returns a writer for the named format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteRun writes a run report to outPath, or to stdout when outPath is
// empty.
func WriteRun(r *report.Run, format, outPath string) error {
	wr, err := GetWriter(format)
	if err != nil {
		return err
	}
	return toDest(outPath, func(w io.Writer) error { return wr.WriteRun(w, r) })
}

// WriteDetections writes a detection report to w in the named format.
func WriteDetections(w io.Writer, d *report.Detections, format string) error {
	wr, err := GetWriter(format)
	if err != nil {
		return err
	}
	return wr.WriteDetections(w, d)
}

func toDest(outPath string, fn func(io.Writer) error) error {
	if outPath == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/scribe/internal/report"
)

// JSONWriter outputs the full report as indented JSON.
type JSONWriter struct{}

func (j *JSONWriter) WriteRun(w io.Writer, r *report.Run) error {
	return writeJSON(w, r)
}

func (j *JSONWriter) WriteDetections(w io.Writer, d *report.Detections) error {
	return writeJSON(w, d)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// Package report holds the run report and the privacy detection report and
// builds them from checkpointed records.
package report

import (
	"slices"
	"time"

	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/redact"
)

// DocumentDetections lists what was redacted from one document.
type DocumentDetections struct {
	Path        string                `json:"path"`
	Title       string                `json:"title,omitempty"`
	Counts      redact.SeverityCounts `json:"counts"`
	HasCritical bool                  `json:"has_critical"`
	Detections  []redact.Detection    `json:"detections"`
}

// Detections is the privacy report for a set of documents.
type Detections struct {
	GeneratedAt         time.Time               `json:"generated_at"`
	TotalDocuments      int                     `json:"total_documents"`
	DocumentsWithIssues int                     `json:"documents_with_issues"`
	TotalDetections     int                     `json:"total_detections"`
	SeverityBreakdown   redact.SeverityCounts   `json:"severity_breakdown"`
	CategoryBreakdown   map[redact.Category]int `json:"category_breakdown"`
	Documents           []DocumentDetections    `json:"documents"`
}

// BuildDetections aggregates the detections stored on recs. Documents with
// nothing redacted count towards TotalDocuments only.
func BuildDetections(recs []document.Record, at time.Time) *Detections {
	d := &Detections{
		GeneratedAt:       at,
		TotalDocuments:    len(recs),
		CategoryBreakdown: make(map[redact.Category]int),
		Documents:         []DocumentDetections{},
	}
	for _, r := range recs {
		if len(r.Detections) == 0 {
			continue
		}
		d.Add(r.Path, r.Title, r.Detections)
	}
	return d
}

// Add records the detections of one document.
func (d *Detections) Add(path, title string, dets []redact.Detection) {
	if d.CategoryBreakdown == nil {
		d.CategoryBreakdown = make(map[redact.Category]int)
	}
	counts := redact.ComputeCounts(dets)
	d.Documents = append(d.Documents, DocumentDetections{
		Path:        path,
		Title:       title,
		Counts:      counts,
		HasCritical: counts.Critical > 0,
		Detections:  slices.Clone(dets),
	})
	d.DocumentsWithIssues++
	d.TotalDetections += counts.Total()
	d.SeverityBreakdown.Merge(counts)
	for _, det := range dets {
		if !det.Repeat {
			d.CategoryBreakdown[det.Category]++
		}
	}
}

// HasCritical reports whether any document carries a critical detection.
func (d *Detections) HasCritical() bool {
	return d != nil && d.SeverityBreakdown.Critical > 0
}

// Meets reports whether any detection is at or above threshold ("none"
// never matches).
func (d *Detections) Meets(threshold string) bool {
	if d == nil {
		return false
	}
	for _, doc := range d.Documents {
		for _, det := range doc.Detections {
			if redact.MeetsThreshold(det.Severity, threshold) {
				return true
			}
		}
	}
	return false
}

// StageStat is the per-stage line of a run report.
type StageStat struct {
	Name       string `json:"name"`
	Skipped    bool   `json:"skipped,omitempty"`
	Batches    int    `json:"batches"`
	Records    int    `json:"records"`
	Advanced   int    `json:"advanced"`
	Failed     int    `json:"failed"`
	Reused     int    `json:"reused,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// DocumentError is one document that did not make it to publication.
type DocumentError struct {
	Path   string          `json:"path"`
	Status document.Status `json:"status"`
	Error  string          `json:"error"`
}

// Run is the report of one pipeline run.
type Run struct {
	RunID              string          `json:"run_id"`
	State              string          `json:"state"`
	StartedAt          time.Time       `json:"started_at"`
	FinishedAt         time.Time       `json:"finished_at"`
	DurationSeconds    float64         `json:"duration_seconds"`
	TotalDocuments     int             `json:"total_documents"`
	ProcessedDocuments int             `json:"processed_documents"`
	PublishedDocuments int             `json:"published_documents"`
	Errors             []DocumentError `json:"errors"`
	Abort              string          `json:"abort,omitempty"`
	Warnings           []string        `json:"warnings,omitempty"`
	Success            bool            `json:"success"`
	Checkpoints        []string        `json:"checkpoints"`
	Posts              []string        `json:"posts,omitempty"`
	Privacy            *Detections     `json:"privacy,omitempty"`
	Stages             []StageStat     `json:"stages"`
}

// Tally fills the document counts and per-document errors from the final
// records. Processed counts every record that did not fail; a record that
// stopped short of publication without failing is still an error.
func (r *Run) Tally(recs []document.Record) {
	r.TotalDocuments = len(recs)
	r.ProcessedDocuments = 0
	r.PublishedDocuments = 0
	r.Errors = []DocumentError{}
	r.Posts = nil
	for _, rec := range recs {
		switch {
		case rec.Status.Failed():
			r.Errors = append(r.Errors, DocumentError{Path: rec.Path, Status: rec.Status, Error: rec.Error})
			continue
		case rec.Status == document.StatusPublished:
			r.PublishedDocuments++
			if rec.PostFile != "" {
				r.Posts = append(r.Posts, rec.PostFile)
			}
		case rec.Status.PublishEligible():
			r.Errors = append(r.Errors, DocumentError{Path: rec.Path, Status: rec.Status, Error: "not published"})
		}
		r.ProcessedDocuments++
	}
}

// Finish stamps the end state and derives Success.
func (r *Run) Finish(state string, at time.Time) {
	r.State = state
	r.FinishedAt = at
	r.DurationSeconds = at.Sub(r.StartedAt).Seconds()
	if r.Errors == nil {
		r.Errors = []DocumentError{}
	}
	if r.Checkpoints == nil {
		r.Checkpoints = []string{}
	}
	r.Success = len(r.Errors) == 0 && r.Abort == ""
}

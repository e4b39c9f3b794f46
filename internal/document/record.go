package document

import (
	"fmt"
	"slices"
	"time"

	"github.com/dshills/scribe/internal/redact"
)

// Correction is one change the reviewer made to the body.
type Correction struct {
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
}

// FormatIssue is one lint finding from the format check.
type FormatIssue struct {
	Line    int    `json:"line"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Event is one entry of a record's status history.
type Event struct {
	Stage  string    `json:"stage"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// Record is the unit of work: one source document plus everything the
// stages derive from it. Body is the single working text each stage reads
// and overwrites.
type Record struct {
	Path       string    `json:"path"`
	SourcePath string    `json:"source_path"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Modified   time.Time `json:"modified"`
	Encoding   string    `json:"encoding,omitempty"`
	Lines      int       `json:"lines"`
	Content    string    `json:"content"`
	Body       string    `json:"body"`

	OriginalTitle string   `json:"original_title,omitempty"`
	Title         string   `json:"title,omitempty"`
	Slug          string   `json:"slug,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Category      string   `json:"category,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	ReadingTime   int      `json:"reading_time,omitempty"`

	Corrections  []Correction  `json:"corrections,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	FormatIssues []FormatIssue `json:"format_issues,omitempty"`

	Detections     []redact.Detection    `json:"detections,omitempty"`
	SeverityCounts redact.SeverityCounts `json:"severity_counts"`
	HasCritical    bool                  `json:"has_critical"`

	PostFile    string    `json:"post_file,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`

	Status  Status  `json:"status"`
	Error   string  `json:"error,omitempty"`
	History []Event `json:"history,omitempty"`
}

// Advance moves the record to a later success status.
func (r *Record) Advance(stage string, to Status, at time.Time) error {
	if r.Status.Failed() {
		return fmt.Errorf("%w: %s is terminal", ErrTransition, r.Status)
	}
	if !to.Valid() || to.Failed() {
		return fmt.Errorf("%w: %q is not a success status", ErrTransition, to)
	}
	if r.Status != "" && to.Rank() <= r.Status.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, r.Status, to)
	}
	r.Status = to
	r.History = append(r.History, Event{Stage: stage, Status: to, At: at})
	return nil
}

// Fail moves the record to a failure status with a message. An empty
// message is replaced so a failed record always says something.
func (r *Record) Fail(stage string, to Status, msg string, at time.Time) error {
	if r.Status.Failed() {
		return fmt.Errorf("%w: %s is terminal", ErrTransition, r.Status)
	}
	if !to.Failed() {
		return fmt.Errorf("%w: %q is not a failure status", ErrTransition, to)
	}
	if msg == "" {
		msg = "unknown error"
	}
	r.Status = to
	r.Error = msg
	r.History = append(r.History, Event{Stage: stage, Status: to, At: at})
	return nil
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	c.Tags = slices.Clone(r.Tags)
	c.Corrections = slices.Clone(r.Corrections)
	c.Warnings = slices.Clone(r.Warnings)
	c.FormatIssues = slices.Clone(r.FormatIssues)
	c.Detections = slices.Clone(r.Detections)
	c.History = slices.Clone(r.History)
	return c
}

// CloneAll deep-copies a batch.
func CloneAll(recs []Record) []Record {
	if recs == nil {
		return nil
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// CountByStatus tallies a batch by status.
func CountByStatus(recs []Record) map[Status]int {
	out := make(map[Status]int)
	for _, r := range recs {
		out[r.Status]++
	}
	return out
}

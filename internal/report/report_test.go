package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scribe/internal/document"
	"github.com/dshills/scribe/internal/redact"
)

var at = time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)

func rec(path string, status document.Status, dets ...redact.Detection) document.Record {
	return document.Record{Path: path, Title: path, Status: status, Detections: dets}
}

func TestBuildDetections(t *testing.T) {
	recs := []document.Record{
		rec("a.md", document.StatusPrivacyChecked,
			redact.Detection{Category: redact.CategoryCredential, Severity: redact.SeverityCritical},
			redact.Detection{Category: redact.CategoryEmail, Severity: redact.SeverityMedium}),
		rec("b.md", document.StatusPrivacyChecked),
		rec("c.md", document.StatusPrivacyChecked,
			redact.Detection{Category: redact.CategoryEmail, Severity: redact.SeverityMedium}),
	}
	d := BuildDetections(recs, at)
	assert.Equal(t, 3, d.TotalDocuments)
	assert.Equal(t, 2, d.DocumentsWithIssues)
	assert.Equal(t, 3, d.TotalDetections)
	assert.Equal(t, redact.SeverityCounts{Critical: 1, Medium: 2}, d.SeverityBreakdown)
	assert.Equal(t, 2, d.CategoryBreakdown[redact.CategoryEmail])
	require.Len(t, d.Documents, 2)
	assert.True(t, d.Documents[0].HasCritical)
	assert.False(t, d.Documents[1].HasCritical)
	assert.True(t, d.HasCritical())

	assert.True(t, d.Meets("critical"))
	assert.True(t, d.Meets("medium"))
	assert.False(t, d.Meets("none"))

	empty := BuildDetections(nil, at)
	assert.False(t, empty.HasCritical())
	assert.False(t, empty.Meets("low"))
	assert.NotNil(t, empty.Documents)

	var nilReport *Detections
	assert.False(t, nilReport.HasCritical())
}

func TestBuildDetections_RepeatsCountOnce(t *testing.T) {
	secret := redact.Detection{Category: redact.CategoryCredential, Rule: "password", Severity: redact.SeverityCritical, Length: 7}
	copied := secret
	copied.Field, copied.Repeat = "summary", true
	d := BuildDetections([]document.Record{rec("leak.md", document.StatusPrivacyChecked, secret, copied)}, at)

	assert.Equal(t, 1, d.TotalDetections)
	assert.Equal(t, redact.SeverityCounts{Critical: 1}, d.SeverityBreakdown)
	assert.Equal(t, 1, d.CategoryBreakdown[redact.CategoryCredential])
	require.Len(t, d.Documents, 1)
	assert.Len(t, d.Documents[0].Detections, 2, "repeats are still listed")
}

func TestRun_TallyAndFinish(t *testing.T) {
	r := &Run{RunID: "01J", StartedAt: at}
	r.Tally([]document.Record{
		{Path: "a.md", Status: document.StatusPublished, PostFile: "posts/a.md"},
		{Path: "b.md", Status: document.StatusPublished, PostFile: "posts/b.md"},
		{Path: "c.md", Status: document.StatusReviewFailed, Error: "bad utf-8"},
	})
	r.Finish("done", at.Add(1500*time.Millisecond))

	assert.Equal(t, 3, r.TotalDocuments)
	assert.Equal(t, 2, r.ProcessedDocuments)
	assert.Equal(t, 2, r.PublishedDocuments)
	assert.Equal(t, []string{"posts/a.md", "posts/b.md"}, r.Posts)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, document.StatusReviewFailed, r.Errors[0].Status)
	assert.False(t, r.Success)
	assert.InDelta(t, 1.5, r.DurationSeconds, 0.001)
	assert.Equal(t, []string{}, r.Checkpoints)
}

func TestRun_UnpublishedEligibleIsError(t *testing.T) {
	r := &Run{StartedAt: at}
	r.Tally([]document.Record{{Path: "a.md", Status: document.StatusFormatChecked}})
	r.Finish("done", at)
	assert.Equal(t, 1, r.ProcessedDocuments)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "not published", r.Errors[0].Error)
	assert.False(t, r.Success)
}

func TestRun_EmptyIsSuccess(t *testing.T) {
	r := &Run{StartedAt: at}
	r.Tally(nil)
	r.Finish("done", at)
	assert.True(t, r.Success)
	assert.Zero(t, r.TotalDocuments)
	assert.Equal(t, []DocumentError{}, r.Errors)

	r.Abort = "critical privacy detections"
	r.Finish("aborted", at)
	assert.False(t, r.Success)
}

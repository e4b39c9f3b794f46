package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/report"
)

// ToolVersion is reported in the SARIF driver block.
var ToolVersion = "dev"

// SARIFWriter outputs detections in SARIF v2.1.0 format.
type SARIFWriter struct{}

// WriteRun emits the run's privacy detections; a run without a privacy
// report produces an empty result list.
func (s *SARIFWriter) WriteRun(w io.Writer, r *report.Run) error {
	d := r.Privacy
	if d == nil {
		d = &report.Detections{}
	}
	return s.WriteDetections(w, d)
}

func (s *SARIFWriter) WriteDetections(w io.Writer, d *report.Detections) error {
	data, err := json.MarshalIndent(buildSARIF(d), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID     string           `json:"ruleId"`
	Level      string           `json:"level"`
	Message    sarifMessage     `json:"message"`
	Locations  []sarifLocation  `json:"locations,omitempty"`
	Properties sarifResultProps `json:"properties"`
}

type sarifResultProps struct {
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Field    string `json:"field,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func buildSARIF(d *report.Detections) sarifLog {
	results := []sarifResult{}
	rules := []sarifRule{}
	seen := make(map[redact.Category]bool)

	for _, doc := range d.Documents {
		for _, det := range doc.Detections {
			if !seen[det.Category] {
				seen[det.Category] = true
				rules = append(rules, sarifRule{
					ID:               ruleID(det.Category),
					Name:             string(det.Category),
					ShortDescription: sarifMessage{Text: fmt.Sprintf("Sensitive %s value", det.Category)},
					DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(det.Severity)},
					Properties:       sarifRuleProperties{Tags: []string{"privacy", string(det.Category)}},
				})
			}
			line := max(det.Line, 1)
			results = append(results, sarifResult{
				RuleID:  ruleID(det.Category),
				Level:   severityToLevel(det.Severity),
				Message: sarifMessage{Text: fmt.Sprintf("%s redacted as %s", det.Rule, det.Replacement)},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: doc.Path},
						Region:           sarifRegion{StartLine: line},
					},
				}},
				Properties: sarifResultProps{Severity: string(det.Severity), Rule: det.Rule, Field: det.Field},
			})
		}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "scribe",
				Version:        ToolVersion,
				InformationURI: "https://github.com/dshills/scribe",
				Rules:          rules,
			}},
			Results: results,
		}},
	}
}

// severityToLevel maps a detection severity to a SARIF level.
func severityToLevel(s redact.Severity) string {
	switch s {
	case redact.SeverityCritical, redact.SeverityHigh:
		return "error"
	case redact.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func ruleID(c redact.Category) string {
	return "scribe/privacy/" + string(c)
}

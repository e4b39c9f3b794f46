package redact

import "fmt"

// Severity represents how damaging a leaked match would be.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if SeverityRank(sev) == 0 {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	return SeverityRank(s) >= SeverityRank(Severity(threshold))
}

// Category is the kind of sensitive value a detection represents.
type Category string

const (
	CategoryCredential       Category = "credential"
	CategoryPrivateKey       Category = "private-key"
	CategoryCertificate      Category = "certificate"
	CategoryToken            Category = "token"
	CategoryConnectionString Category = "connection-string"
	CategoryEmail            Category = "email"
	CategoryPhone            Category = "phone"
	CategoryIPAddress        Category = "ip-address"
	CategoryDomain           Category = "domain"
	CategoryURLParameter     Category = "url-parameter"
	CategoryEncodedBlob      Category = "encoded-blob"
)

// scanOrder is the fixed order categories are scanned in. The last two are
// filled by the URL and blob passes and hold no regex rules.
var scanOrder = []Category{
	CategoryCredential,
	CategoryPrivateKey,
	CategoryCertificate,
	CategoryToken,
	CategoryConnectionString,
	CategoryEmail,
	CategoryPhone,
	CategoryIPAddress,
	CategoryDomain,
	CategoryURLParameter,
	CategoryEncodedBlob,
}

// legacyCategories maps rule-set names used by older privacy configs onto
// categories.
var legacyCategories = map[string]Category{
	"api_keys":       CategoryCredential,
	"passwords":      CategoryCredential,
	"private_keys":   CategoryPrivateKey,
	"certificates":   CategoryCertificate,
	"jwt_tokens":     CategoryToken,
	"tokens":         CategoryToken,
	"database_urls":  CategoryConnectionString,
	"emails":         CategoryEmail,
	"phone_numbers":  CategoryPhone,
	"ip_addresses":   CategoryIPAddress,
	"domains":        CategoryDomain,
	"sensitive_url":  CategoryURLParameter,
	"base64_secret":  CategoryEncodedBlob,
	"base64_secrets": CategoryEncodedBlob,
}

// ParseCategory resolves a category name or legacy alias.
func ParseCategory(s string) (Category, error) {
	for _, c := range scanOrder {
		if string(c) == s {
			return c, nil
		}
	}
	if c, ok := legacyCategories[s]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Detection is one redacted match.
//
// Start and End are byte offsets into the redacted text, and
// text[Start:End] is always Replacement.
type Detection struct {
	Category    Category `json:"category"`
	Rule        string   `json:"rule"`
	Severity    Severity `json:"severity"`
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Line        int      `json:"line"`
	InCode      bool     `json:"in_code_block,omitempty"`
	Replacement string   `json:"replacement"`
	Length      int      `json:"length"`
	Context     string   `json:"context"`
	Parameter   string   `json:"parameter,omitempty"`
	Field       string   `json:"field,omitempty"`
	// Repeat marks a match of a value already counted in another field of
	// the same document. It is redacted but not counted again.
	Repeat bool `json:"repeat,omitempty"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the bucket for s.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// Merge adds o into c.
func (c *SeverityCounts) Merge(o SeverityCounts) {
	c.Critical += o.Critical
	c.High += o.High
	c.Medium += o.Medium
	c.Low += o.Low
}

// Total returns the sum of all buckets.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Result is the output of a scan.
type Result struct {
	Text        string         `json:"text"`
	Detections  []Detection    `json:"detections"`
	Counts      SeverityCounts `json:"counts"`
	HasCritical bool           `json:"has_critical"`
}

// ComputeCounts builds the severity histogram for detections, skipping
// repeats.
func ComputeCounts(dets []Detection) SeverityCounts {
	var c SeverityCounts
	for _, d := range dets {
		if !d.Repeat {
			c.Add(d.Severity)
		}
	}
	return c
}

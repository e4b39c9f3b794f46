package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is a single detection pattern. If Pattern has a named group "value"
// only that submatch is replaced, otherwise the whole match.
type Rule struct {
	Name        string
	Category    Category
	Pattern     *regexp.Regexp
	Replacement string
	valueIdx    int
}

func newRule(name string, cat Category, pattern, replacement string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", name, err)
	}
	return Rule{
		Name:        name,
		Category:    cat,
		Pattern:     re,
		Replacement: replacement,
		valueIdx:    re.SubexpIndex("value"),
	}, nil
}

// RuleSetConfig is one named group of patterns in a rules file.
type RuleSetConfig struct {
	Category    string   `yaml:"category"`
	Replacement string   `yaml:"replacement"`
	Patterns    []string `yaml:"patterns"`
}

// RegistryConfig is the on-disk shape of a rules file.
type RegistryConfig struct {
	Rules             map[string]RuleSetConfig `yaml:"rules"`
	Severities        map[string]string        `yaml:"severities"`
	AllowedDomains    []string                 `yaml:"allowedDomains"`
	ExclusionPatterns []string                 `yaml:"exclusionPatterns"`
	SensitiveParams   []string                 `yaml:"sensitiveParams"`
	SensitiveKeywords []string                 `yaml:"sensitiveKeywords"`
	BlobMinLength     int                      `yaml:"blobMinLength"`
	ReplaceDefaults   bool                     `yaml:"replaceDefaults"`
}

// Registry is an immutable set of rules plus the policy lists the engine
// consults. Build one with NewRegistry, LoadRules or DefaultRegistry.
type Registry struct {
	rules        map[Category][]Rule
	severities   map[Category]Severity
	replacements map[Category]string
	allowed      []string
	exclusions   []*regexp.Regexp
	params       []string
	keywords     []string
	blobMin      int
	fingerprint  string
}

var defaultRegistry *Registry

func init() {
	r, err := NewRegistry(RegistryConfig{})
	if err != nil {
		panic("redact: built-in rules: " + err.Error())
	}
	defaultRegistry = r
}

// DefaultRegistry returns the registry built from the built-in rule table.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// LoadRules reads a YAML rules file and builds a registry from it.
func LoadRules(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}

// ParseRules builds a registry from YAML rules data.
func ParseRules(data []byte) (*Registry, error) {
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return NewRegistry(cfg)
}

// NewRegistry compiles cfg on top of the built-in rules. With
// ReplaceDefaults set, only the rules in cfg are used.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		rules:        make(map[Category][]Rule),
		severities:   make(map[Category]Severity),
		replacements: make(map[Category]string),
		params:       defaultSensitiveParams,
		keywords:     defaultSensitiveKeywords,
		blobMin:      defaultBlobMinLength,
	}
	for _, c := range scanOrder {
		r.severities[c] = defaultSeverities[c]
		r.replacements[c] = defaultReplacement(c)
	}

	if !cfg.ReplaceDefaults {
		for _, b := range builtinRules {
			rule, err := newRule(b.name, b.category, b.pattern, b.replacement)
			if err != nil {
				return nil, err
			}
			r.rules[b.category] = append(r.rules[b.category], rule)
		}
	}

	names := make([]string, 0, len(cfg.Rules))
	for name := range cfg.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		set := cfg.Rules[name]
		catName := set.Category
		if catName == "" {
			catName = name
		}
		cat, err := ParseCategory(catName)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: %w", name, err)
		}
		if cat == CategoryURLParameter || cat == CategoryEncodedBlob {
			return nil, fmt.Errorf("rule set %s: category %s does not take patterns", name, cat)
		}
		for i, p := range set.Patterns {
			ruleName := name
			if len(set.Patterns) > 1 {
				ruleName = name + "#" + strconv.Itoa(i+1)
			}
			rule, err := newRule(ruleName, cat, p, set.Replacement)
			if err != nil {
				return nil, fmt.Errorf("rule set %s: %w", name, err)
			}
			r.rules[cat] = append(r.rules[cat], rule)
		}
	}

	for k, v := range cfg.Severities {
		cat, err := ParseCategory(k)
		if err != nil {
			return nil, fmt.Errorf("severities: %w", err)
		}
		sev, err := ParseSeverity(strings.ToLower(v))
		if err != nil {
			return nil, fmt.Errorf("severities[%s]: %w", k, err)
		}
		r.severities[cat] = sev
	}

	for _, d := range cfg.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			r.allowed = append(r.allowed, d)
		}
	}
	for _, p := range cfg.ExclusionPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("exclusion pattern %q: %w", p, err)
		}
		r.exclusions = append(r.exclusions, re)
	}
	if len(cfg.SensitiveParams) > 0 {
		r.params = lowerAll(cfg.SensitiveParams)
	}
	if len(cfg.SensitiveKeywords) > 0 {
		r.keywords = lowerAll(cfg.SensitiveKeywords)
	}
	if cfg.BlobMinLength > 0 {
		r.blobMin = cfg.BlobMinLength
	}

	r.fingerprint = r.computeFingerprint()
	return r, nil
}

// Categories returns every category in scan order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(scanOrder))
	copy(out, scanOrder)
	return out
}

// Rules returns the rules registered for c, in scan order.
func (r *Registry) Rules(c Category) []Rule {
	return r.rules[c]
}

// Severity returns the severity assigned to c.
func (r *Registry) Severity(c Category) Severity {
	if s, ok := r.severities[c]; ok {
		return s
	}
	return SeverityMedium
}

// Replacement returns the default placeholder for c.
func (r *Registry) Replacement(c Category) string {
	if s, ok := r.replacements[c]; ok {
		return s
	}
	return defaultReplacement(c)
}

func (r *Registry) replacementFor(rule Rule) string {
	if rule.Replacement != "" {
		return rule.Replacement
	}
	return r.Replacement(rule.Category)
}

// IsAllowedDomain reports whether host (optionally with a port) equals an
// allowed domain or is a subdomain of one.
func (r *Registry) IsAllowedDomain(host string) bool {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	for _, d := range r.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether s matches any exclusion pattern.
func (r *Registry) IsExcluded(s string) bool {
	for _, re := range r.exclusions {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// SensitiveParams returns the lower-cased URL query keys whose values are
// redacted.
func (r *Registry) SensitiveParams() []string { return r.params }

// SensitiveKeywords returns the lower-cased words that mark a decoded blob
// as secret.
func (r *Registry) SensitiveKeywords() []string { return r.keywords }

// BlobMinLength returns the length a base64 run must exceed to be decoded.
func (r *Registry) BlobMinLength() int { return r.blobMin }

// Fingerprint is a stable hash of everything that affects scan output.
func (r *Registry) Fingerprint() string { return r.fingerprint }

func (r *Registry) computeFingerprint() string {
	h := sha256.New()
	for _, c := range scanOrder {
		fmt.Fprintf(h, "cat\x00%s\x00%s\x00%s\n", c, r.severities[c], r.replacements[c])
		for _, rule := range r.rules[c] {
			fmt.Fprintf(h, "rule\x00%s\x00%s\x00%s\n", rule.Name, rule.Pattern.String(), rule.Replacement)
		}
	}
	for _, d := range r.allowed {
		fmt.Fprintf(h, "allow\x00%s\n", d)
	}
	for _, re := range r.exclusions {
		fmt.Fprintf(h, "exclude\x00%s\n", re.String())
	}
	for _, p := range r.params {
		fmt.Fprintf(h, "param\x00%s\n", p)
	}
	for _, k := range r.keywords {
		fmt.Fprintf(h, "keyword\x00%s\n", k)
	}
	fmt.Fprintf(h, "blob\x00%d\n", r.blobMin)
	return hex.EncodeToString(h.Sum(nil))
}

func defaultReplacement(c Category) string {
	switch c {
	case CategoryURLParameter:
		return "[REMOVED]"
	case CategoryEncodedBlob:
		return "[BASE64_SECRET_REMOVED]"
	}
	return "[" + strings.ToUpper(strings.ReplaceAll(string(c), "-", "_")) + "_REMOVED]"
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

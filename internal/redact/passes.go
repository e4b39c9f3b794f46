package redact

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

var (
	urlPattern  = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	blobPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
)

// codeBlockPass rescans every line inside a fence on its own, so patterns
// anchored to line boundaries get a chance inside code. Lines are visited
// last to first so earlier line offsets stay valid.
func (s *scanState) codeBlockPass() {
	fences := fenceRanges(s.text)
	for i := len(fences) - 1; i >= 0; i-- {
		ln := fences[i]
		hi := ln.end
		for _, c := range scanOrder {
			for _, rule := range s.reg.Rules(c) {
				hi += s.applyRule(rule, ln.start, hi)
			}
		}
	}
}

// urlPass replaces the values of sensitive query parameters in absolute
// http(s) links, keeping the rest of the URL intact.
func (s *scanState) urlPass() {
	params := s.reg.SensitiveParams()
	if len(params) == 0 {
		return
	}
	repl := s.reg.Replacement(CategoryURLParameter)
	sev := s.reg.Severity(CategoryURLParameter)

	var edits []edit
	for _, m := range urlPattern.FindAllStringIndex(s.text, -1) {
		u := s.text[m[0]:m[1]]
		q := strings.IndexByte(u, '?')
		if q < 0 {
			continue
		}
		query := u[q+1:]
		if h := strings.IndexByte(query, '#'); h >= 0 {
			query = query[:h]
		}
		pos := m[0] + q + 1
		for _, part := range strings.Split(query, "&") {
			partStart := pos
			pos += len(part) + 1
			key, value, ok := strings.Cut(part, "=")
			if !ok || value == "" {
				continue
			}
			name := strings.ToLower(key)
			if unescaped, err := url.QueryUnescape(name); err == nil {
				name = unescaped
			}
			if !slices.Contains(params, name) {
				continue
			}
			vStart := partStart + len(key) + 1
			vEnd := partStart + len(part)
			if s.overlaps(vStart, vEnd) {
				continue
			}
			edits = append(edits, edit{
				start: vStart,
				end:   vEnd,
				repl:  repl,
				det: Detection{
					Category:    CategoryURLParameter,
					Rule:        "sensitive-param",
					Severity:    sev,
					Replacement: repl,
					Length:      vEnd - vStart,
					Parameter:   key,
				},
			})
		}
	}
	s.apply(edits)
}

// blobPass replaces long base64 runs whose decoded bytes mention a
// sensitive keyword. Runs that do not decode are left alone.
func (s *scanState) blobPass() {
	keywords := s.reg.SensitiveKeywords()
	if len(keywords) == 0 {
		return
	}
	repl := s.reg.Replacement(CategoryEncodedBlob)
	sev := s.reg.Severity(CategoryEncodedBlob)
	minLen := s.reg.BlobMinLength()

	var edits []edit
	for _, m := range blobPattern.FindAllStringIndex(s.text, -1) {
		blob := s.text[m[0]:m[1]]
		if len(blob) <= minLen || s.overlaps(m[0], m[1]) {
			continue
		}
		decoded, ok := decodeBase64(blob)
		if !ok {
			continue
		}
		lower := strings.ToLower(string(decoded))
		if !slices.ContainsFunc(keywords, func(k string) bool { return strings.Contains(lower, k) }) {
			continue
		}
		edits = append(edits, edit{
			start: m[0],
			end:   m[1],
			repl:  repl,
			det: Detection{
				Category:    CategoryEncodedBlob,
				Rule:        "base64-keyword",
				Severity:    sev,
				Replacement: repl,
				Length:      m[1] - m[0],
			},
		})
	}
	s.apply(edits)
}

func decodeBase64(s string) ([]byte, bool) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b, true
	}
	return nil, false
}

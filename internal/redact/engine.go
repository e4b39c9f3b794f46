package redact

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const contextRadius = 30

// Engine scans text against a Registry and replaces what it finds.
type Engine struct {
	Registry *Registry
}

// NewEngine returns an engine over reg, or over the built-in rules if reg is nil.
func NewEngine(reg *Registry) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Engine{Registry: reg}
}

// ScanAndRedact returns text with every detected value replaced by its
// placeholder, plus one Detection per replacement. It never fails; text
// without matches comes back unchanged with no detections.
func (e *Engine) ScanAndRedact(text string) Result {
	reg := e.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	s := &scanState{reg: reg, text: text}

	for _, c := range scanOrder {
		for _, rule := range reg.Rules(c) {
			s.applyRule(rule, 0, len(s.text))
		}
	}
	s.codeBlockPass()
	s.urlPass()
	s.blobPass()

	return s.finalize()
}

// edit replaces text[start:end] with repl. Edits handed to apply are sorted
// and never overlap each other or an existing detection.
type edit struct {
	start, end int
	repl       string
	det        Detection
}

type scanState struct {
	reg  *Registry
	text string
	dets []Detection
}

// overlaps reports whether [start,end) touches a span already replaced.
func (s *scanState) overlaps(start, end int) bool {
	for _, d := range s.dets {
		if start < d.End && d.Start < end {
			return true
		}
	}
	return false
}

// applyRule runs one forward scan of rule over text[lo:hi] and returns the
// length change it caused.
func (s *scanState) applyRule(rule Rule, lo, hi int) int {
	region := s.text[lo:hi]
	matches := rule.Pattern.FindAllStringSubmatchIndex(region, -1)
	if len(matches) == 0 {
		return 0
	}
	repl := s.reg.replacementFor(rule)
	sev := s.reg.Severity(rule.Category)

	var edits []edit
	for _, m := range matches {
		mStart, mEnd := lo+m[0], lo+m[1]
		vStart, vEnd := mStart, mEnd
		if rule.valueIdx > 0 {
			if m[2*rule.valueIdx] < 0 {
				continue
			}
			vStart, vEnd = lo+m[2*rule.valueIdx], lo+m[2*rule.valueIdx+1]
		}
		if vStart == vEnd || s.overlaps(mStart, mEnd) {
			continue
		}
		if rule.Category == CategoryDomain {
			v := s.text[vStart:vEnd]
			if s.reg.IsAllowedDomain(v) || s.reg.IsExcluded(v) {
				continue
			}
		}
		edits = append(edits, edit{
			start: vStart,
			end:   vEnd,
			repl:  repl,
			det: Detection{
				Category:    rule.Category,
				Rule:        rule.Name,
				Severity:    sev,
				Replacement: repl,
				Length:      vEnd - vStart,
			},
		})
	}
	return s.apply(edits)
}

// apply rebuilds the text into a fresh buffer, records a detection per edit
// at its new offsets, and shifts every earlier detection past the edits that
// precede it.
func (s *scanState) apply(edits []edit) int {
	if len(edits) == 0 {
		return 0
	}
	// cum[i] is the total length change of edits[:i].
	cum := make([]int, len(edits)+1)
	var b strings.Builder
	b.Grow(len(s.text))
	prev := 0
	newDets := make([]Detection, 0, len(edits))
	for i, ed := range edits {
		b.WriteString(s.text[prev:ed.start])
		d := ed.det
		d.Start = b.Len()
		b.WriteString(ed.repl)
		d.End = b.Len()
		newDets = append(newDets, d)
		prev = ed.end
		cum[i+1] = cum[i] + len(ed.repl) - (ed.end - ed.start)
	}
	b.WriteString(s.text[prev:])

	for i := range s.dets {
		d := &s.dets[i]
		n := sort.Search(len(edits), func(j int) bool { return edits[j].start >= d.Start })
		d.Start += cum[n]
		d.End += cum[n]
	}
	s.text = b.String()
	s.dets = append(s.dets, newDets...)
	return cum[len(edits)]
}

func (s *scanState) finalize() Result {
	sort.SliceStable(s.dets, func(i, j int) bool { return s.dets[i].Start < s.dets[j].Start })

	fences := fenceRanges(s.text)
	line, pos := 1, 0
	for i := range s.dets {
		d := &s.dets[i]
		line += strings.Count(s.text[pos:d.Start], "\n")
		pos = d.Start
		d.Line = line
		if inRanges(fences, d.Start) {
			d.InCode = true
		}
		d.Context = contextAround(s.text, d.Start, d.End)
	}

	dets := s.dets
	if dets == nil {
		dets = []Detection{}
	}
	counts := ComputeCounts(dets)
	return Result{
		Text:        s.text,
		Detections:  dets,
		Counts:      counts,
		HasCritical: counts.Critical > 0,
	}
}

// contextAround returns up to contextRadius bytes either side of
// text[start:end], trimmed to rune boundaries.
func contextAround(text string, start, end int) string {
	lo := max(0, start-contextRadius)
	hi := min(len(text), end+contextRadius)
	for lo < start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	for hi > end && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return text[lo:hi]
}

type span struct{ start, end int }

// fenceRanges returns the byte ranges of lines inside ``` fences, fence
// lines excluded. An unclosed fence runs to the end of the text.
func fenceRanges(text string) []span {
	var out []span
	in := false
	for _, ln := range lines(text) {
		if strings.HasPrefix(strings.TrimSpace(text[ln.start:ln.end]), "```") {
			in = !in
			continue
		}
		if in {
			out = append(out, ln)
		}
	}
	return out
}

// lines splits text into line spans, newline excluded.
func lines(text string) []span {
	var out []span
	start := 0
	for {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			out = append(out, span{start, len(text)})
			return out
		}
		out = append(out, span{start, start + i})
		start += i + 1
	}
}

func inRanges(rs []span, pos int) bool {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].end >= pos })
	return i < len(rs) && rs[i].start <= pos
}

package markup

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSummary is used when a document has no prose to summarize.
	DefaultSummary = "Notes and lessons from hands-on technical work."
	maxTitleRunes  = 100
	maxSummary     = 200
	maxExcerpt     = 150
	wordsPerMinute = 200
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```.*?```")
	headingLine   = regexp.MustCompile(`(?m)^#{1,6}\s.*$`)
	headingMarker = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLink        = regexp.MustCompile(`!?\[([^\]]+)\]\([^)]+\)`)
	emphasis      = regexp.MustCompile("[*_`]")
	spaceRun      = regexp.MustCompile(`\s+`)
	latinWord     = regexp.MustCompile(`[A-Za-z]+`)
	headingCap    = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
)

// ExtractTitle returns the first level-one heading, or failing that the
// first prose line cut to 50 runes. It returns "" for a document with no
// usable line.
func ExtractTitle(content string) string {
	lines := strings.Split(content, "\n")
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if strings.HasPrefix(ln, "# ") {
			return strings.TrimSpace(ln[2:])
		}
	}
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln != "" && !strings.HasPrefix(ln, "#") && !strings.HasPrefix(ln, "```") {
			return truncateRunes(ln, 50, "...")
		}
	}
	return ""
}

// OptimizeTitle strips punctuation noise, drops stop words at either end
// and caps the length.
func OptimizeTitle(title string, kw Keywords) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(".+#-_/", r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.Trim(w, ".-_/")
	}
	words = dropEmpty(words)

	stop := make(map[string]bool, len(kw.StopWords))
	for _, s := range kw.StopWords {
		stop[strings.ToLower(s)] = true
	}
	tech := make(map[string]bool, len(kw.TechKeywords))
	for _, s := range kw.TechKeywords {
		tech[strings.ToLower(s)] = true
	}
	isStop := func(w string) bool {
		lw := strings.ToLower(w)
		return stop[lw] && !tech[lw]
	}
	trimmed := words
	for len(trimmed) > 1 && isStop(trimmed[0]) {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 1 && isStop(trimmed[len(trimmed)-1]) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return truncateRunes(strings.Join(trimmed, " "), maxTitleRunes, "...")
}

// Slug turns a title into a URL path segment. Letters from any script are
// kept; everything else collapses into single hyphens.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '.' || r == '/':
			b.WriteRune('-')
		}
	}
	parts := dropEmpty(strings.Split(b.String(), "-"))
	slug := strings.Join(parts, "-")
	if utf8.RuneCountInString(slug) > 50 && len(parts) > 10 {
		slug = strings.Join(parts[:10], "-")
	}
	return strings.Trim(truncateRunes(slug, 80, ""), "-")
}

// Summary returns the leading prose paragraphs that fit in 200 bytes,
// skipping code and headings.
func Summary(content string) string {
	text := fencedBlock.ReplaceAllString(content, "")
	text = headingLine.ReplaceAllString(text, "")
	var summary string
	for _, para := range paragraphs(text) {
		if len(summary)+len(para) > maxSummary {
			break
		}
		summary += para + "\n\n"
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		if ps := paragraphs(text); len(ps) > 0 {
			summary = truncateBytes(ps[0], maxSummary-3) + "..."
		}
	}
	if summary == "" {
		return DefaultSummary
	}
	return summary
}

// Excerpt returns a plain-text teaser of at most 150 bytes with headings
// and Markdown syntax removed.
func Excerpt(content string) string {
	text := StripMarkdown(headingLine.ReplaceAllString(content, ""))
	var excerpt string
	for _, para := range paragraphs(text) {
		para = spaceRun.ReplaceAllString(para, " ")
		if len(excerpt)+len(para) <= maxExcerpt {
			excerpt += para + " "
			continue
		}
		if excerpt == "" {
			excerpt = truncateBytes(para, maxExcerpt-3) + "..."
		}
		break
	}
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return DefaultSummary
	}
	return excerpt
}

// StripMarkdown drops code blocks, heading markers, link targets and
// emphasis characters.
func StripMarkdown(content string) string {
	text := fencedBlock.ReplaceAllString(content, "")
	text = headingMarker.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	return emphasis.ReplaceAllString(text, "")
}

// CountWords counts Han characters plus Latin words, so mixed Chinese and
// English text gets a sensible total.
func CountWords(content string) int {
	n := len(latinWord.FindAllStringIndex(content, -1))
	for _, r := range content {
		if unicode.Is(unicode.Han, r) {
			n++
		}
	}
	return n
}

// ReadingTime estimates minutes to read content, at least one.
func ReadingTime(content string) int {
	return max(1, int(math.Round(float64(CountWords(content))/wordsPerMinute)))
}

// Tags returns up to limit tech keywords mentioned in the title or body, in
// keyword-table order.
func Tags(title, content string, kw Keywords, limit int) []string {
	text := strings.ToLower(title + " " + content)
	var tags []string
	seen := make(map[string]bool)
	for _, k := range kw.TechKeywords {
		lk := strings.ToLower(k)
		if seen[lk] || !containsTerm(text, lk) {
			continue
		}
		seen[lk] = true
		tags = append(tags, k)
		if len(tags) >= limit {
			break
		}
	}
	return tags
}

// Category scores each configured category by how many of its keywords
// appear in the title, tags and the first 500 runes of the body. Ties go
// to the earlier category.
func Category(title string, tags []string, content string, kw Keywords) string {
	text := strings.ToLower(title + " " + strings.Join(tags, " ") + " " + truncateRunes(content, 500, ""))
	best, bestScore := "", 0
	for _, c := range kw.Categories {
		score := 0
		for _, k := range c.Keywords {
			if containsTerm(text, strings.ToLower(k)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c.Name, score
		}
	}
	if best == "" {
		return kw.DefaultCategory
	}
	return best
}

// TableOfContents inserts a contents list before the first level-two
// heading when the document has at least three headings outside code.
// Documents that already carry one are returned unchanged.
func TableOfContents(content string) string {
	type heading struct {
		level int
		text  string
	}
	var heads []heading
	inFence := false
	for _, ln := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if trimmed == "## "+tocTitle {
			return content
		}
		if m := headingCap.FindStringSubmatch(trimmed); m != nil {
			heads = append(heads, heading{len(m[1]), m[2]})
		}
	}
	if len(heads) < 3 {
		return content
	}

	var toc strings.Builder
	toc.WriteString("## " + tocTitle + "\n\n")
	for _, h := range heads {
		if h.level == 1 {
			continue
		}
		toc.WriteString(strings.Repeat("  ", h.level-2))
		toc.WriteString("- [" + h.text + "](#" + Anchor(h.text) + ")\n")
	}
	toc.WriteString("\n")

	if i := strings.Index(content, "\n## "); i > 0 {
		return content[:i] + "\n\n" + toc.String() + content[i+1:]
	}
	return toc.String() + content
}

const tocTitle = "Contents"

// Anchor converts heading text to the fragment the site generator assigns.
func Anchor(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	return strings.Trim(regexp.MustCompile(`-+`).ReplaceAllString(b.String(), "-"), "-")
}

// containsTerm reports whether term occurs in text. Terms made only of
// ASCII letters and digits must stand alone so "go" does not match "good".
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	if !isASCIIWord(term) {
		return strings.Contains(text, term)
	}
	for off := 0; ; {
		i := strings.Index(text[off:], term)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(term)
		if !isWordByteAt(text, start-1) && !isWordByteAt(text, end) {
			return true
		}
		off = start + 1
	}
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}

func isWordByteAt(s string, i int) bool {
	return i >= 0 && i < len(s) && isWordByte(s[i])
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dropEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truncateRunes cuts s to n runes, appending suffix when it cut.
func truncateRunes(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	i, count := 0, 0
	for i < len(s) && count < keep {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i] + suffix
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

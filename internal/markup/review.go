package markup

import (
	"regexp"
	"slices"
	"strings"

	"github.com/dshills/scribe/internal/document"
)

// Correction kinds.
const (
	KindTerm     = "term"
	KindGrammar  = "grammar"
	KindFence    = "code-fence"
	KindMarkdown = "markdown"
)

type termFix struct {
	re      *regexp.Regexp
	correct string
}

// Words that are also ordinary English (react, express, spring, rest) are
// left out so prose is not rewritten.
var termTable = []struct{ from, to string }{
	{"nodejs", "Node.js"}, {"node.js", "Node.js"}, {"vue", "Vue"},
	{"angular", "Angular"}, {"django", "Django"},
	{"spring boot", "Spring Boot"}, {"springboot", "Spring Boot"},
	{"python", "Python"}, {"javascript", "JavaScript"}, {"typescript", "TypeScript"},
	{"golang", "Go"}, {"csharp", "C#"}, {"php", "PHP"},
	{"mysql", "MySQL"}, {"postgresql", "PostgreSQL"}, {"postgres", "PostgreSQL"},
	{"mongodb", "MongoDB"}, {"redis", "Redis"}, {"sqlite", "SQLite"},
	{"aws", "AWS"}, {"gcp", "GCP"}, {"amazon web services", "AWS"},
	{"github", "GitHub"}, {"gitlab", "GitLab"}, {"docker", "Docker"},
	{"kubernetes", "Kubernetes"}, {"k8s", "Kubernetes"}, {"jenkins", "Jenkins"},
	{"vscode", "VS Code"}, {"visual studio code", "VS Code"},
	{"api", "API"}, {"restful", "RESTful"}, {"json", "JSON"}, {"xml", "XML"},
	{"html", "HTML"}, {"css", "CSS"}, {"sql", "SQL"}, {"nosql", "NoSQL"},
	{"ci/cd", "CI/CD"}, {"cicd", "CI/CD"}, {"devops", "DevOps"},
	{"sdk", "SDK"}, {"cli", "CLI"}, {"apikey", "API key"},
	{"openai", "OpenAI"}, {"chatgpt", "ChatGPT"}, {"gpt", "GPT"},
}

var termFixes = func() []termFix {
	out := make([]termFix, len(termTable))
	for i, t := range termTable {
		out[i] = termFix{regexp.MustCompile("(?i)" + regexp.QuoteMeta(t.from)), t.to}
	}
	return out
}()

var grammarFixes = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`的得`), "的"},
	{regexp.MustCompile(`得地`), "地"},
	{regexp.MustCompile(`和以及`), "和"},
	{regexp.MustCompile(`并且并且`), "并且"},
	{regexp.MustCompile(`然后然后`), "然后"},
	{regexp.MustCompile(`了了`), "了"},
	{regexp.MustCompile(`，{2,}`), "，"},
	{regexp.MustCompile(`。{2,}`), "。"},
	{regexp.MustCompile(`！{2,}`), "！"},
	{regexp.MustCompile(`？{2,}`), "？"},
	{regexp.MustCompile(`[ \t]+([，。])`), "$1"},
	{regexp.MustCompile(`，[ \t]+`), "，"},
}

var fenceLangs = map[string]string{
	"js": "javascript", "javascript": "javascript",
	"py": "python", "python": "python",
	"sh": "bash", "shell": "bash", "bash": "bash",
	"htm": "html", "html": "html",
	"stylesheet": "css", "css": "css",
	"json": "json", "xml": "xml", "sql": "sql",
	"golang": "go", "yml": "yaml",
}

var (
	headingNoSpace = regexp.MustCompile(`^(\s*#{1,6})([^#\s!])`)
	paddedLink     = regexp.MustCompile(`(!?)\[[ \t]*([^\]]*?)[ \t]*\][ \t]*\([ \t]*([^)\s]+)[ \t]*\)`)
	paddedBold     = regexp.MustCompile(`\*\*[ \t]+([^*\n]+?)[ \t]*\*\*|\*\*([^*\n]+?)[ \t]+\*\*`)
	inlineCode     = regexp.MustCompile("`[^`\n]*`")
	urlLike        = regexp.MustCompile(`(?i)\b(?:https?|ftp)://\S+|\]\([^)]*\)`)
)

var factChecks = []struct {
	re      *regexp.Regexp
	warning string
}{
	{regexp.MustCompile(`(?i)python\s*(?:是|is an?)\s*(?:编译型\s*语言|compiled language)`), "Python is an interpreted language, not a compiled one"},
	{regexp.MustCompile(`(?i)c\+\+\s*(?:是|is an?)\s*(?:解释型\s*语言|interpreted language)`), "C++ is a compiled language, not an interpreted one"},
	{regexp.MustCompile(`(?i)http\s*(?:是|is an?)\s*(?:有状态\s*协议|stateful protocol)`), "HTTP is a stateless protocol"},
	{regexp.MustCompile(`(?i)tcp\s*(?:是|is an?)\s*(?:不可靠\s*(?:的)?\s*协议|unreliable protocol)`), "TCP is a reliable transport protocol"},
	{regexp.MustCompile(`(?i)udp\s*(?:是|is an?)\s*(?:可靠\s*(?:的)?\s*协议|reliable protocol)`), "UDP is an unreliable transport protocol"},
}

// Review applies the reviewer's corrections to body and returns the new
// body, a list of what changed and any factual warnings. Code inside fences
// is never rewritten apart from the fence language tag.
func Review(body string) (string, []document.Correction, []string) {
	var corr corrections
	lines := strings.Split(body, "\n")
	inFence := false
	for i, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "```") {
			lines[i] = fixFence(ln, inFence, &corr)
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		ln = fixMarkdown(ln, &corr)
		ln = fixProse(ln, &corr)
		lines[i] = ln
	}
	out := strings.Join(lines, "\n")

	var warnings []string
	for _, f := range factChecks {
		if f.re.MatchString(out) {
			warnings = append(warnings, f.warning)
		}
	}
	return out, corr.list, warnings
}

type corrections struct {
	list []document.Correction
	seen map[document.Correction]bool
}

func (c *corrections) add(kind, from, to string) {
	k := document.Correction{Kind: kind, From: from, To: to}
	if c.seen == nil {
		c.seen = make(map[document.Correction]bool)
	}
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.list = append(c.list, k)
}

func fixFence(line string, closing bool, c *corrections) string {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	info := strings.TrimSpace(strings.TrimSpace(line)[3:])
	if closing {
		if info != "" {
			c.add(KindFence, strings.TrimSpace(line), "```")
		}
		return indent + "```"
	}
	lang := info
	if lang == "" {
		lang = "text"
	} else if norm, ok := fenceLangs[strings.ToLower(lang)]; ok {
		lang = norm
	}
	if lang != info {
		c.add(KindFence, "```"+info, "```"+lang)
	}
	return indent + "```" + lang
}

func fixMarkdown(line string, c *corrections) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#!") {
		return line
	}
	if m := headingNoSpace.FindStringSubmatchIndex(line); m != nil {
		fixed := line[:m[3]] + " " + line[m[4]:]
		c.add(KindMarkdown, "heading without space", "heading with space")
		line = fixed
	}
	if fixed := paddedLink.ReplaceAllString(line, "$1[$2]($3)"); fixed != line {
		c.add(KindMarkdown, "padded link", "trimmed link")
		line = fixed
	}
	if fixed := paddedBold.ReplaceAllString(line, "**$1$2**"); fixed != line {
		c.add(KindMarkdown, "padded bold", "trimmed bold")
		line = fixed
	}
	return line
}

// fixProse applies term casing and grammar fixes to the parts of line that
// are neither inline code nor URLs.
func fixProse(line string, c *corrections) string {
	protected := mergeSpans(inlineCode.FindAllStringIndex(line, -1), urlLike.FindAllStringIndex(line, -1))
	var b strings.Builder
	prev := 0
	for _, sp := range protected {
		b.WriteString(fixSegment(line[prev:sp[0]], c))
		b.WriteString(line[sp[0]:sp[1]])
		prev = sp[1]
	}
	b.WriteString(fixSegment(line[prev:], c))
	out := b.String()
	if trimmed := strings.TrimRight(out, " \t"); trimmed != out && strings.TrimSpace(out) != "" {
		c.add(KindGrammar, "trailing whitespace", "")
		out = trimmed
	}
	return out
}

func fixSegment(seg string, c *corrections) string {
	if seg == "" {
		return seg
	}
	for _, f := range termFixes {
		seg = replaceTerm(seg, f, c)
	}
	for _, g := range grammarFixes {
		if fixed := g.re.ReplaceAllString(seg, g.repl); fixed != seg {
			c.add(KindGrammar, g.re.String(), g.repl)
			seg = fixed
		}
	}
	return seg
}

// replaceTerm recases whole-word occurrences of a term.
func replaceTerm(seg string, f termFix, c *corrections) string {
	locs := f.re.FindAllStringIndex(seg, -1)
	if locs == nil {
		return seg
	}
	var b strings.Builder
	prev := 0
	for _, l := range locs {
		found := seg[l[0]:l[1]]
		if found == f.correct || isWordByteAt(seg, l[0]-1) || isWordByteAt(seg, l[1]) || joinsPath(seg, l) {
			continue
		}
		b.WriteString(seg[prev:l[0]])
		b.WriteString(f.correct)
		c.add(KindTerm, found, f.correct)
		prev = l[1]
	}
	if prev == 0 {
		return seg
	}
	b.WriteString(seg[prev:])
	return b.String()
}

// joinsPath reports whether the match is part of a file name or dotted
// identifier such as config.json or redis.conf.
func joinsPath(seg string, l []int) bool {
	before := l[0] > 0 && (seg[l[0]-1] == '.' || seg[l[0]-1] == '/')
	after := l[1] < len(seg)-1 && (seg[l[1]] == '.' || seg[l[1]] == '/') && isWordByte(seg[l[1]+1])
	return before || after
}

func mergeSpans(a, b [][]int) [][]int {
	all := append(append([][]int{}, a...), b...)
	slices.SortFunc(all, func(x, y []int) int { return x[0] - y[0] })
	var out [][]int
	for _, s := range all {
		if n := len(out); n > 0 && s[0] <= out[n-1][1] {
			out[n-1][1] = max(out[n-1][1], s[1])
			continue
		}
		out = append(out, []int{s[0], s[1]})
	}
	return out
}

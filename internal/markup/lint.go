package markup

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dshills/scribe/internal/document"
)

// Lint rule names.
const (
	RuleHeadingSpace = "heading-space"
	RuleHeadingJump  = "heading-jump"
	RuleDuplicateH1  = "duplicate-h1"
	RuleUnclosed     = "unclosed-fence"
	RuleTrailing     = "trailing-whitespace"
	RuleBlankLines   = "blank-lines"
	RuleTable        = "table-columns"
	RuleHTML         = "html-balance"
)

var (
	lintHeading = regexp.MustCompile(`^(#{1,6})(\s*)(.*)$`)
	tableSep    = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

// Lint reports formatting problems in a Markdown body without changing it.
// Line numbers are 1-based.
func Lint(body string) []document.FormatIssue {
	var issues []document.FormatIssue
	add := func(line int, rule, format string, args ...any) {
		issues = append(issues, document.FormatIssue{Line: line, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	lines := strings.Split(body, "\n")
	prose := make([]string, len(lines))
	var (
		inFence   bool
		fenceLine int
		lastLevel int
		h1Seen    int
		blankRun  int
	)
	for i, ln := range lines {
		n := i + 1
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "```") {
			if !inFence {
				fenceLine = n
			}
			inFence = !inFence
			blankRun = 0
			continue
		}
		if inFence {
			continue
		}
		prose[i] = ln

		if trimmed == "" {
			blankRun++
			if blankRun == 3 {
				add(n-2, RuleBlankLines, "more than two consecutive blank lines")
			}
			continue
		}
		blankRun = 0

		if strings.TrimRight(ln, " \t") != ln {
			add(n, RuleTrailing, "trailing whitespace")
		}

		if m := lintHeading.FindStringSubmatch(ln); m != nil && !strings.HasPrefix(ln, "#!") {
			level := len(m[1])
			if m[2] == "" && m[3] != "" {
				add(n, RuleHeadingSpace, "heading marker %q needs a space before the text", m[1])
			}
			if level == 1 {
				h1Seen++
				if h1Seen == 2 {
					add(n, RuleDuplicateH1, "more than one level-1 heading")
				}
			}
			if lastLevel > 0 && level > lastLevel+1 {
				add(n, RuleHeadingJump, "heading level jumps from %d to %d", lastLevel, level)
			}
			lastLevel = level
		}

		if strings.HasPrefix(trimmed, "|") && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			header := i == 0 || !strings.HasPrefix(strings.TrimSpace(lines[i-1]), "|")
			if header && tableSep.MatchString(next) {
				if hc, sc := tableColumns(trimmed), tableColumns(next); hc != sc {
					add(n, RuleTable, "table header has %d columns but separator has %d", hc, sc)
				}
			}
		}
	}
	if inFence {
		add(fenceLine, RuleUnclosed, "code fence is never closed")
	}
	issues = append(issues, lintHTML(prose)...)
	return issues
}

func tableColumns(row string) int {
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")
	return strings.Count(row, "|") + 1
}

// lintHTML checks that inline HTML tags outside code are balanced. Lines
// inside fences arrive empty so line numbers stay aligned.
func lintHTML(prose []string) []document.FormatIssue {
	text := strings.Join(prose, "\n")
	text = inlineCode.ReplaceAllStringFunc(text, func(s string) string { return strings.Repeat(" ", len(s)) })
	if !strings.Contains(text, "<") {
		return nil
	}
	type open struct {
		name string
		line int
	}
	var (
		issues []document.FormatIssue
		stack  []open
		line   = 1
	)
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start := line
		line += strings.Count(string(raw), "\n")
		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if isElement(name) && !voidElements[string(name)] {
				stack = append(stack, open{string(name), start})
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if !isElement(name) {
				continue
			}
			tag := string(name)
			i := len(stack) - 1
			for i >= 0 && stack[i].name != tag {
				i--
			}
			if i < 0 {
				issues = append(issues, document.FormatIssue{Line: start, Rule: RuleHTML, Message: fmt.Sprintf("closing </%s> has no matching opening tag", tag)})
				continue
			}
			for _, o := range stack[i+1:] {
				issues = append(issues, document.FormatIssue{Line: o.line, Rule: RuleHTML, Message: fmt.Sprintf("<%s> is not closed", o.name)})
			}
			stack = stack[:i]
		}
	}
	for _, o := range stack {
		issues = append(issues, document.FormatIssue{Line: o.line, Rule: RuleHTML, Message: fmt.Sprintf("<%s> is not closed", o.name)})
	}
	return issues
}

// isElement filters out autolinks such as <https://x> that the tokenizer
// reads as tags.
func isElement(name []byte) bool {
	return atom.Lookup(name) != 0
}

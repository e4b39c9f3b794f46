package markup

import (
	"strings"
	"unicode/utf8"
)

const (
	longLineRunes  = 200
	splitLineRunes = 150
)

// NormalizeStructure tidies the layout of a Markdown body: heading markers
// get a single space and at most six hashes, over-long prose lines are
// broken at sentence punctuation, and runs of blank lines collapse to one.
// Fenced code is copied through untouched.
func NormalizeStructure(content string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			out = append(out, strings.TrimRight(line, " \t"))
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		switch {
		case trimmed == "":
			out = append(out, "")
		case strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#!"):
			text := strings.TrimLeft(trimmed, "#")
			level := min(len(trimmed)-len(text), 6)
			text = strings.TrimSpace(text)
			if text == "" {
				out = append(out, line)
				continue
			}
			out = append(out, strings.Repeat("#", level)+" "+text)
		case utf8.RuneCountInString(trimmed) > longLineRunes && !isBlockLine(trimmed) &&
			!strings.Contains(trimmed, "://") && !strings.Contains(trimmed, "`"):
			out = append(out, splitSentences(trimmed)...)
		default:
			out = append(out, line)
		}
	}

	final := out[:0]
	prevBlank := false
	for _, ln := range out {
		blank := strings.TrimSpace(ln) == ""
		if blank && prevBlank {
			continue
		}
		final = append(final, ln)
		prevBlank = blank
	}
	return strings.Join(final, "\n")
}

// isBlockLine reports lines whose layout carries meaning: list items,
// quotes and table rows.
func isBlockLine(s string) bool {
	switch s[0] {
	case '-', '*', '+', '>', '|':
		return true
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && s[i] == '.'
}

// splitSentences breaks a long line after sentence punctuation so that no
// piece grows past splitLineRunes unless a single sentence is longer.
func splitSentences(line string) []string {
	var (
		parts   []string
		current strings.Builder
		start   int
	)
	flush := func(sentence string) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sentence) > splitLineRunes {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	for i, r := range line {
		end := i + utf8.RuneLen(r)
		wide := strings.ContainsRune("。！？，", r)
		ascii := strings.ContainsRune(",.!?", r) && (end == len(line) || line[end] == ' ')
		if wide || ascii {
			flush(line[start:end])
			start = end
		}
	}
	if start < len(line) {
		flush(line[start:])
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

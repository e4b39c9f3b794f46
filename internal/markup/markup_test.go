package markup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"h1", "intro\n# Deploying Redis\nbody", "Deploying Redis"},
		{"first prose line", "## Sub\n\nPlain opening line\nmore", "Plain opening line"},
		{"long line truncated", strings.Repeat("x", 80), strings.Repeat("x", 47) + "..."},
		{"skips fences", "```go\n```\nreal line", "real line"},
		{"empty", "\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.content); got != tt.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOptimizeTitle(t *testing.T) {
	kw := DefaultKeywords()
	tests := []struct {
		in, want string
	}{
		{"The Art of Go!!", "Art of Go"},
		{"Notes on Node.js (draft)", "Notes on Node.js draft"},
		{"The", "The"},
		{"部署 Redis 集群：实践", "部署 Redis 集群 实践"},
	}
	for _, tt := range tests {
		if got := OptimizeTitle(tt.in, kw); got != tt.want {
			t.Errorf("OptimizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"Deploying Node.js on AWS!", "deploying-node-js-on-aws"},
		{"  --Trim--  ", "trim"},
		{"部署 Redis 集群", "部署-redis-集群"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := Slug(strings.Repeat("word ", 30))
	if n := strings.Count(long, "-") + 1; n != 10 {
		t.Errorf("long slug has %d words, want 10", n)
	}
}

func TestSummaryAndExcerpt(t *testing.T) {
	content := "# Title\n\nFirst paragraph with a [link](http://x.test) and **bold**.\n\n```go\ncode()\n```\n\nSecond paragraph."
	sum := Summary(content)
	if strings.Contains(sum, "code()") || strings.Contains(sum, "# Title") {
		t.Errorf("Summary kept code or headings: %q", sum)
	}
	if !strings.HasPrefix(sum, "First paragraph") {
		t.Errorf("Summary = %q", sum)
	}

	ex := Excerpt(content)
	if ex != "First paragraph with a link and bold. Second paragraph." {
		t.Errorf("Excerpt = %q", ex)
	}

	if got := Summary("```\nonly code\n```"); got != DefaultSummary {
		t.Errorf("Summary of code-only doc = %q, want default", got)
	}
	long := Excerpt(strings.Repeat("词", 200))
	if len(long) > maxExcerpt || !strings.HasSuffix(long, "...") {
		t.Errorf("Excerpt of long paragraph = %d bytes %q", len(long), long[len(long)-6:])
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 1},
		{strings.Repeat("word ", 600), 3},
		{strings.Repeat("字", 400), 2},
	}
	for _, tt := range tests {
		if got := ReadingTime(tt.content); got != tt.want {
			t.Errorf("ReadingTime(%d bytes) = %d, want %d", len(tt.content), got, tt.want)
		}
	}
	if got := CountWords("Go 语言 is fun"); got != 5 {
		t.Errorf("CountWords = %d, want 5", got)
	}
}

func TestTags(t *testing.T) {
	kw := DefaultKeywords()
	got := Tags("Running Redis in Docker", "This is good advice for kubernetes users.", kw, 10)
	want := []string{"Redis", "Docker", "Kubernetes"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Tags = %v, want %v", got, want)
	}
	if got := Tags("", "good golf", kw, 10); len(got) != 0 {
		t.Errorf("Tags matched inside words: %v", got)
	}
	if got := Tags("Go Python Rust Java", "", kw, 2); len(got) != 2 {
		t.Errorf("Tags limit ignored: %v", got)
	}
}

func TestCategory(t *testing.T) {
	kw := DefaultKeywords()
	tests := []struct {
		title string
		tags  []string
		body  string
		want  string
	}{
		{"Tuning PostgreSQL", []string{"PostgreSQL"}, "database indexes and SQL plans", "Databases"},
		{"Docker tips", []string{"Docker"}, "", "DevOps"},
		{"数据库优化", nil, "", "Databases"},
		{"Thoughts", nil, "nothing matches here", "Tech Notes"},
	}
	for _, tt := range tests {
		if got := Category(tt.title, tt.tags, tt.body, kw); got != tt.want {
			t.Errorf("Category(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestTableOfContents(t *testing.T) {
	doc := "# Title\n\nIntro\n\n## Setup\n\ntext\n\n### Install Step\n\n```\n## not a heading\n```\n\n## Usage\n"
	got := TableOfContents(doc)
	want := "## Contents\n\n- [Setup](#Setup)\n  - [Install Step](#Install-Step)\n- [Usage](#Usage)\n"
	if !strings.Contains(got, want) {
		t.Fatalf("TableOfContents missing list:\n%s", got)
	}
	if strings.Index(got, "## Contents") > strings.Index(got, "## Setup") {
		t.Error("contents must precede the first section")
	}
	if strings.Contains(got, "not a heading](") {
		t.Error("heading inside code fence listed")
	}
	if again := TableOfContents(got); again != got {
		t.Error("TableOfContents is not idempotent")
	}

	short := "# T\n\n## One\n"
	if got := TableOfContents(short); got != short {
		t.Errorf("short doc changed: %q", got)
	}
}

func TestNormalizeStructure(t *testing.T) {
	in := "#Title\n\n\n\n########Deep\n```bash\n#!/bin/sh\n#comment\n```\n#!/usr/bin/env\n- item"
	want := "# Title\n\n###### Deep\n```bash\n#!/bin/sh\n#comment\n```\n#!/usr/bin/env\n- item"
	if got := NormalizeStructure(in); got != want {
		t.Errorf("NormalizeStructure =\n%q\nwant\n%q", got, want)
	}

	long := strings.Repeat("This sentence is fairly long. ", 10)
	for _, ln := range strings.Split(NormalizeStructure(long), "\n") {
		if len(ln) > splitLineRunes {
			t.Errorf("line not split: %d runes", len(ln))
		}
	}
	url := "see https://example.com/" + strings.Repeat("a.b", 80)
	if got := NormalizeStructure(url); got != url {
		t.Error("line with a URL was split")
	}
}

func TestReview(t *testing.T) {
	body := strings.Join([]string{
		"##Setup",
		"Install golang and mysql, then read config.json and `mysql -u root`.",
		"Visit https://github.com/docker/compose for more.",
		"这是了了一个测试，，好的。 ",
		"[ padded ]( http://x.test )",
		"```js",
		"const mysql = require('mysql')",
		"``` ",
		"```",
		"plain",
		"```",
	}, "\n")
	got, corrections, warnings := Review(body)
	want := strings.Join([]string{
		"## Setup",
		"Install Go and MySQL, then read config.json and `mysql -u root`.",
		"Visit https://github.com/docker/compose for more.",
		"这是了一个测试，好的。",
		"[padded](http://x.test)",
		"```javascript",
		"const mysql = require('mysql')",
		"```",
		"```text",
		"plain",
		"```",
	}, "\n")
	if got != want {
		t.Errorf("Review body =\n%s\nwant\n%s", got, want)
	}
	if len(corrections) == 0 {
		t.Error("Review reported no corrections")
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	_, _, warnings = Review("Remember that HTTP is a stateful protocol.")
	if len(warnings) != 1 {
		t.Errorf("factual warnings = %v, want one", warnings)
	}
}

func TestLint(t *testing.T) {
	body := strings.Join([]string{
		"# One",         // 1
		"#Two",          // 2 heading-space + duplicate-h1
		"### Deep",      // 3 heading-jump
		"trailing  ",    // 4
		"",              // 5
		"",              // 6
		"",              // 7
		"| a | b |",     // 8
		"|---|",         // 9
		"<div><b>x</b>", // 10
		"<https://autolink.test>",
		"`<span>` is code",
		"```",
		"<p> in code",
	}, "\n")
	issues := Lint(body)
	got := map[string]int{}
	for _, is := range issues {
		got[is.Rule] = is.Line
	}
	want := map[string]int{
		RuleHeadingSpace: 2,
		RuleDuplicateH1:  2,
		RuleHeadingJump:  3,
		RuleTrailing:     4,
		RuleBlankLines:   5,
		RuleTable:        8,
		RuleHTML:         10,
		RuleUnclosed:     13,
	}
	for rule, line := range want {
		if got[rule] != line {
			t.Errorf("rule %s at line %d, want %d (issues %+v)", rule, got[rule], line, issues)
		}
	}
	if len(issues) != len(want) {
		t.Errorf("got %d issues, want %d: %+v", len(issues), len(want), issues)
	}

	if issues := Lint("# Fine\n\n## Section\n\ntext <br> <em>ok</em>\n"); len(issues) != 0 {
		t.Errorf("clean doc has issues: %+v", issues)
	}
}

func TestRenderPostRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC)
	fm := NewFrontMatter(PostMeta{
		Title:       "Tuning: PostgreSQL",
		Category:    "Databases",
		Tags:        []string{"PostgreSQL", "SQL"},
		Excerpt:     "How we cut query time.",
		ReadingTime: 4,
	}, at)
	out, err := RenderPost(fm, "Body text\n")
	if err != nil {
		t.Fatalf("RenderPost: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "---\n") || !strings.Contains(s, "\n---\n\n<!-- more -->\n\nBody text\n") {
		t.Fatalf("unexpected layout:\n%s", s)
	}

	back, body, ok := SplitFrontMatter(s)
	if !ok {
		t.Fatal("SplitFrontMatter did not find the header")
	}
	if back.Title != "Tuning: PostgreSQL" || back.Date != "2026-03-09 14:05:00" || back.ReadingTime != "4 min" {
		t.Errorf("round trip = %+v", back)
	}
	if len(back.Categories) != 1 || back.Categories[0] != "Databases" {
		t.Errorf("categories = %v", back.Categories)
	}
	if !strings.HasPrefix(body, "<!-- more -->") {
		t.Errorf("body = %q", body)
	}

	if _, body, ok := SplitFrontMatter("no header\n---\n"); ok || body != "no header\n---\n" {
		t.Error("SplitFrontMatter accepted a document without a leading header")
	}
}

func TestLoadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	data := "techKeywords: [Zig, Odin]\ndefaultCategory: Misc\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	kw, err := LoadKeywords(path)
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	if len(kw.TechKeywords) != 2 || kw.DefaultCategory != "Misc" {
		t.Errorf("overrides not applied: %+v", kw)
	}
	if len(kw.Categories) != len(DefaultKeywords().Categories) {
		t.Error("missing section should keep defaults")
	}

	if _, err := LoadKeywords(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

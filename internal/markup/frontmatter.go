package markup

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// DateLayout is the timestamp format the site generator expects.
const DateLayout = "2006-01-02 15:04:05"

// DefaultCover is the cover image used when a post names none.
const DefaultCover = "/img/default-cover.jpg"

// FrontMatter is the YAML header of a published post.
type FrontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Updated     string   `yaml:"updated"`
	Categories  []string `yaml:"categories"`
	Tags        []string `yaml:"tags"`
	Excerpt     string   `yaml:"excerpt,omitempty"`
	Cover       string   `yaml:"cover,omitempty"`
	TOC         bool     `yaml:"toc"`
	Top         bool     `yaml:"top"`
	Comments    bool     `yaml:"comments"`
	Description string   `yaml:"description,omitempty"`
	Keywords    string   `yaml:"keywords,omitempty"`
	ReadingTime string   `yaml:"reading_time,omitempty"`
}

// PostMeta is what a post header is built from.
type PostMeta struct {
	Title       string
	Category    string
	Tags        []string
	Excerpt     string
	Summary     string
	ReadingTime int
	Cover       string
}

// NewFrontMatter fills a header for a post published at the given time.
func NewFrontMatter(m PostMeta, at time.Time) FrontMatter {
	stamp := at.Format(DateLayout)
	keywords := m.Category
	if len(m.Tags) > 0 {
		keywords = strings.Join(m.Tags[:min(5, len(m.Tags))], ", ")
	}
	cover := m.Cover
	if cover == "" {
		cover = DefaultCover
	}
	fm := FrontMatter{
		Title:       m.Title,
		Date:        stamp,
		Updated:     stamp,
		Categories:  []string{},
		Tags:        m.Tags,
		Excerpt:     m.Excerpt,
		Cover:       cover,
		TOC:         true,
		Comments:    true,
		Description: m.Summary,
		Keywords:    keywords,
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	if m.Category != "" {
		fm.Categories = []string{m.Category}
	}
	if m.ReadingTime > 0 {
		fm.ReadingTime = fmt.Sprintf("%d min", m.ReadingTime)
	}
	return fm
}

// RenderPost returns the full post file: front matter, the read-more
// marker and the body.
func RenderPost(fm FrontMatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	if !bytes.HasSuffix(header, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString("---\n\n<!-- more -->\n\n")
	buf.WriteString(strings.TrimLeft(body, "\n"))
	if !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// SplitFrontMatter separates a leading YAML header from a document. ok is
// false when the document has no header or the header does not parse, in
// which case body is the unchanged input.
func SplitFrontMatter(content string) (fm FrontMatter, body string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimPrefix(content, "\uFEFF"), "---\n")
	if !found {
		return FrontMatter{}, content, false
	}
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return FrontMatter{}, content, false
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' && after[0] != '\r' {
		return FrontMatter{}, content, false
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return FrontMatter{}, content, false
	}
	return fm, strings.TrimLeft(after, "\r\n"), true
}

// Package content parses MDX/Markdown post sources: front-matter metadata,
// rendered HTML, and the document structure (headings, links, code fences)
// that editorial checks run against.
package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// FrontMatter is the metadata block preceding a post body. The field set is
// the publishing contract consumed by the site templates: every published
// post carries all of these.
type FrontMatter struct {
	Title   string   `yaml:"title"`
	Date    string   `yaml:"date"`
	Tags    []string `yaml:"tags"`
	Draft   bool     `yaml:"draft"`
	Summary string   `yaml:"summary"`
	Authors []string `yaml:"authors"`
	Images  []string `yaml:"images"`
	Layout  string   `yaml:"layout"`
}

// Heading is a section heading with its generated anchor ID.
type Heading struct {
	Level int
	Text  string
	ID    string
	Line  int
}

// LinkKind classifies a link destination.
type LinkKind int

const (
	LinkAnchor   LinkKind = iota // #fragment within the same document
	LinkInternal                 // site-relative path
	LinkExternal                 // absolute http(s) URL
	LinkOther                    // mailto:, tel:, and anything else
)

// Link is a hyperlink or image reference found in the body.
// Line is the line of the enclosing block and may be approximate for
// links inside wrapped paragraphs; 0 means unknown.
type Link struct {
	Dest  string
	Text  string
	Kind  LinkKind
	Image bool
	Line  int
}

// CodeBlock is a fenced code block with its stated language.
// Line is the line of the opening fence.
type CodeBlock struct {
	Language string
	Code     string
	Line     int
}

// Document is one parsed post source.
type Document struct {
	FrontMatter FrontMatter
	// Meta holds the raw front-matter keys for presence checks. A key may
	// be present with an empty or false value.
	Meta map[string]any
	// Body is the markdown after the front-matter block.
	Body string
	// HTML is the rendered body.
	HTML string

	Headings   []Heading
	Links      []Link
	CodeBlocks []CodeBlock
	// Components lists capitalized MDX component tags (e.g. "TOCInline")
	// found in raw HTML, in order of first appearance.
	Components []string
}

// Heading returns the heading with the given anchor ID, if any.
func (d *Document) Heading(id string) (Heading, bool) {
	for _, h := range d.Headings {
		if h.ID == id {
			return h, true
		}
	}
	return Heading{}, false
}

// Parser turns post sources into Documents. It is safe for concurrent use.
type Parser struct {
	md goldmark.Markdown
}

// NewParser builds the goldmark pipeline used for all post content:
// GFM + footnotes + typographer, YAML/TOML front-matter, GitHub-style
// auto heading IDs, and raw-HTML passthrough so MDX component tags
// survive rendering.
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithXHTML(),
			goldmarkhtml.WithUnsafe(),
		),
	)
	return &Parser{md: md}
}

// Parse reads one post source and returns its Document. Front-matter is
// decoded twice: once into the typed FrontMatter and once into a raw map
// so checks can distinguish an absent key from a zero value.
func (p *Parser) Parse(src []byte) (*Document, error) {
	pc := parser.NewContext()
	root := p.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	doc := &Document{Meta: map[string]any{}}
	if data := frontmatter.Get(pc); data != nil {
		if err := data.Decode(&doc.FrontMatter); err != nil {
			return nil, fmt.Errorf("content: decode front matter: %w", err)
		}
		raw := map[string]any{}
		if err := data.Decode(&raw); err != nil {
			return nil, fmt.Errorf("content: decode front matter keys: %w", err)
		}
		doc.Meta = raw
	}
	doc.Body = string(stripFrontMatter(src))

	inspect(doc, root, src)

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, root); err != nil {
		return nil, fmt.Errorf("content: render: %w", err)
	}
	doc.HTML = buf.String()
	return doc, nil
}

// stripFrontMatter returns src without a leading front-matter block.
// Both YAML ("---") and TOML ("+++") fences are recognized.
func stripFrontMatter(src []byte) []byte {
	s := src
	// Tolerate a UTF-8 BOM before the opening fence.
	s = bytes.TrimPrefix(s, []byte("\xef\xbb\xbf"))

	var fence string
	switch {
	case bytes.HasPrefix(s, []byte("---")):
		fence = "---"
	case bytes.HasPrefix(s, []byte("+++")):
		fence = "+++"
	default:
		return src
	}

	lines := strings.SplitAfter(string(s), "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != fence {
		return src
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == fence {
			return []byte(strings.Join(lines[i+1:], ""))
		}
	}
	return src
}

// classifyLink maps a destination string to its LinkKind.
func classifyLink(dest string) LinkKind {
	switch {
	case strings.HasPrefix(dest, "#"):
		return LinkAnchor
	case strings.HasPrefix(dest, "http://"), strings.HasPrefix(dest, "https://"):
		return LinkExternal
	case strings.HasPrefix(dest, "/"), strings.HasPrefix(dest, "./"), strings.HasPrefix(dest, "../"):
		return LinkInternal
	case strings.Contains(dest, ":"):
		return LinkOther
	default:
		return LinkInternal
	}
}

// Package check runs editorial checks against parsed post documents:
// the front-matter publishing contract, internal anchor integrity, code
// fence lint, and (behind a separate checker, since it talks to the
// network) external link health.
package check

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Lottamob/Updates/content"
)

// Rule identifiers, grouped by the document area they inspect.
const (
	RuleFrontMatterMissing = "frontmatter/missing"
	RuleFrontMatterDate    = "frontmatter/date"
	RuleFrontMatterLayout  = "frontmatter/layout"
	RuleFrontMatterAuthor  = "frontmatter/author"
	RuleFrontMatterImage   = "frontmatter/image-path"
	RuleAnchorUnresolved   = "anchor/unresolved"
	RuleCodeUnknownLang    = "code/unknown-language"
	RuleCodeSyntax         = "code/syntax"
	RuleLinkBroken         = "link/broken"
	RuleLinkUnreachable    = "link/unreachable"
)

// Severity grades a finding. Errors block publishing; warnings do not.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// A Finding is one violated rule, with the source line when known.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

// Report collects the findings for one document.
type Report struct {
	Path     string    `json:"path,omitempty"`
	Findings []Finding `json:"findings"`
}

func (r *Report) add(rule string, sev Severity, line int, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Rule:     rule,
		Severity: sev,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Merge appends another report's findings.
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.Findings = append(r.Findings, other.Findings...)
	}
}

// Ok reports whether the document can be published. Warnings are
// tolerated, errors are not.
func (r *Report) Ok() bool {
	return r.Errors() == 0
}

// Errors counts the error-severity findings.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings counts the warning-severity findings.
func (r *Report) Warnings() int {
	return len(r.Findings) - r.Errors()
}

// DefaultLayouts are the post layout templates the site ships with.
var DefaultLayouts = []string{"PostLayout", "PostSimple", "PostBanner"}

// Checker validates the offline-checkable properties of a document.
// The zero value checks layouts against DefaultLayouts and skips the
// author registry rule.
type Checker struct {
	// Layouts lists the accepted layout ids. Empty means DefaultLayouts.
	Layouts []string
	// Authors holds the known author ids. Nil disables the author rule.
	Authors map[string]bool
}

// Check runs every offline rule and returns the combined report.
func (c *Checker) Check(doc *content.Document) *Report {
	r := &Report{}
	c.checkFrontMatter(doc, r)
	c.checkAnchors(doc, r)
	c.checkCode(doc, r)
	return r
}

func (c *Checker) layouts() []string {
	if len(c.Layouts) > 0 {
		return c.Layouts
	}
	return DefaultLayouts
}

// checkFrontMatter enforces the publishing contract: every field of the
// front-matter block present, scalars non-empty, the date in a known
// format, the layout one of the accepted templates. Key presence is
// judged on the raw metadata so that "draft: false" passes while a
// missing draft key does not.
func (c *Checker) checkFrontMatter(doc *content.Document, r *Report) {
	fm := doc.FrontMatter
	has := func(key string) bool {
		_, ok := doc.Meta[key]
		return ok
	}

	if !has("title") || strings.TrimSpace(fm.Title) == "" {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "title is missing or empty")
	}

	switch {
	case !has("date") || strings.TrimSpace(fm.Date) == "":
		r.add(RuleFrontMatterMissing, SeverityError, 0, "date is missing or empty")
	default:
		if _, err := ParseDate(fm.Date); err != nil {
			r.add(RuleFrontMatterDate, SeverityError, 0, "date %q is neither YYYY-MM-DD nor RFC 3339", fm.Date)
		}
	}

	if !has("tags") || len(fm.Tags) == 0 {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "tags are missing or empty")
	}

	if !has("draft") {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "draft flag is missing")
	}

	if !has("summary") || strings.TrimSpace(fm.Summary) == "" {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "summary is missing or empty")
	}

	if !has("authors") || len(fm.Authors) == 0 {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "authors are missing or empty")
	} else if c.Authors != nil {
		for _, a := range fm.Authors {
			if !c.Authors[a] {
				r.add(RuleFrontMatterAuthor, SeverityWarning, 0, "author %q is not in the registry", a)
			}
		}
	}

	if !has("images") {
		r.add(RuleFrontMatterMissing, SeverityError, 0, "images key is missing")
	} else {
		for _, img := range fm.Images {
			if !validImagePath(img) {
				r.add(RuleFrontMatterImage, SeverityError, 0, "image %q is neither a site-absolute path nor a URL", img)
			}
		}
	}

	switch {
	case !has("layout") || fm.Layout == "":
		r.add(RuleFrontMatterMissing, SeverityError, 0, "layout is missing or empty")
	case !slices.Contains(c.layouts(), fm.Layout):
		r.add(RuleFrontMatterLayout, SeverityError, 0, "layout %q is not one of %s", fm.Layout, strings.Join(c.layouts(), ", "))
	}
}

// checkAnchors verifies that every #fragment link resolves to a heading
// anchor generated for this document.
func (c *Checker) checkAnchors(doc *content.Document, r *Report) {
	for _, l := range doc.Links {
		if l.Kind != content.LinkAnchor {
			continue
		}
		id := strings.TrimPrefix(l.Dest, "#")
		if id == "" {
			r.add(RuleAnchorUnresolved, SeverityError, l.Line, "empty anchor reference")
			continue
		}
		if dec, err := url.PathUnescape(id); err == nil {
			id = dec
		}
		if _, ok := doc.Heading(id); !ok {
			r.add(RuleAnchorUnresolved, SeverityError, l.Line, "anchor #%s does not match any heading", id)
		}
	}
}

// checkCode flags fences in languages the linter has never heard of and
// runs the superficial lint on the ones it knows. Fences without a
// stated language are prose or console output and stay unchecked.
func (c *Checker) checkCode(doc *content.Document, r *Report) {
	for _, b := range doc.CodeBlocks {
		if b.Language == "" {
			continue
		}
		lang, known := Canonical(b.Language)
		if !known {
			r.add(RuleCodeUnknownLang, SeverityWarning, b.Line, "unknown code fence language %q", b.Language)
			continue
		}
		if iss := Lint(lang, b.Code); iss != nil {
			line := b.Line
			if iss.Line > 0 {
				line = b.Line + iss.Line
			}
			r.add(RuleCodeSyntax, SeverityError, line, "%s: %s", lang, iss.Msg)
		}
	}
}

// ParseDate accepts the two date forms posts use: plain YYYY-MM-DD and
// full RFC 3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func validImagePath(p string) bool {
	return strings.HasPrefix(p, "/") ||
		strings.HasPrefix(p, "http://") ||
		strings.HasPrefix(p, "https://")
}

package content

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
)

// reComponent matches the opening tag of a capitalized MDX component,
// e.g. <TOCInline ...> or <Image/>.
var reComponent = regexp.MustCompile(`<([A-Z][A-Za-z0-9]*)`)

// inspect walks the parsed tree and fills the Document's structural
// fields: headings with anchor IDs, links, fenced code blocks, and MDX
// component tags inside raw HTML.
func inspect(doc *Document, root ast.Node, src []byte) {
	seen := map[string]bool{}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			h := Heading{
				Level: v.Level,
				Text:  string(nodeText(v, src)),
				Line:  nodeLine(v, src),
			}
			if id, ok := v.AttributeString("id"); ok {
				switch val := id.(type) {
				case []byte:
					h.ID = string(val)
				case string:
					h.ID = val
				}
			}
			doc.Headings = append(doc.Headings, h)
		case *ast.Link:
			dest := string(v.Destination)
			doc.Links = append(doc.Links, Link{
				Dest: dest,
				Text: string(nodeText(v, src)),
				Kind: classifyLink(dest),
				Line: nodeLine(v, src),
			})
		case *ast.AutoLink:
			dest := string(v.URL(src))
			switch {
			case v.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(dest, "mailto:"):
				dest = "mailto:" + dest
			case strings.HasPrefix(dest, "www."):
				// The GFM linkify extension emits schemeless www links;
				// normalize the way its renderer does.
				dest = "http://" + dest
			}
			doc.Links = append(doc.Links, Link{
				Dest: dest,
				Text: string(v.Label(src)),
				Kind: classifyLink(dest),
				Line: nodeLine(v, src),
			})
		case *ast.Image:
			dest := string(v.Destination)
			doc.Links = append(doc.Links, Link{
				Dest:  dest,
				Text:  string(nodeText(v, src)),
				Kind:  classifyLink(dest),
				Image: true,
				Line:  nodeLine(v, src),
			})
		case *ast.FencedCodeBlock:
			doc.CodeBlocks = append(doc.CodeBlocks, CodeBlock{
				Language: string(v.Language(src)),
				Code:     blockText(v, src),
				Line:     fenceLine(v, src),
			})
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				collectComponents(doc, seen, seg.Value(src))
			}
		case *ast.HTMLBlock:
			for i := 0; i < v.Lines().Len(); i++ {
				seg := v.Lines().At(i)
				collectComponents(doc, seen, seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
}

// nodeText concatenates the literal text of a node's descendants.
func nodeText(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.Bytes()
}

// nodeLine returns the 1-based source line of a node: the line of its
// first literal text when it has one, otherwise the first line of the
// nearest enclosing block. 0 when no position is known.
func nodeLine(n ast.Node, src []byte) int {
	off := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			off = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if off < 0 {
		for b := n; b != nil; b = b.Parent() {
			if b.Type() != ast.TypeBlock {
				continue
			}
			if lines := b.Lines(); lines.Len() > 0 {
				off = lines.At(0).Start
				break
			}
		}
	}
	return lineAt(src, off)
}

// fenceLine returns the line of a fence's opening delimiter. The block's
// Lines() hold only the code, so the opening fence is one line above the
// first code line; an empty block falls back to its info string.
func fenceLine(v *ast.FencedCodeBlock, src []byte) int {
	if lines := v.Lines(); lines.Len() > 0 {
		if l := lineAt(src, lines.At(0).Start); l > 1 {
			return l - 1
		}
	}
	if v.Info != nil {
		return lineAt(src, v.Info.Segment.Start)
	}
	return 0
}

// blockText joins a block node's source lines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

func lineAt(src []byte, off int) int {
	if off < 0 || off > len(src) {
		return 0
	}
	return 1 + bytes.Count(src[:off], []byte("\n"))
}

func collectComponents(doc *Document, seen map[string]bool, chunk []byte) {
	for _, m := range reComponent.FindAllSubmatch(chunk, -1) {
		name := string(m[1])
		if !seen[name] {
			seen[name] = true
			doc.Components = append(doc.Components, name)
		}
	}
}

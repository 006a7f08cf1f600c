package content

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// defaultParser serves Markdown components; it shares the pipeline used
// by Parse so anchors in rendered pages match the IDs checks validate.
var defaultParser = NewParser()

// Markdown returns a templ.Component that renders a post body as HTML.
// The body must already be stripped of front-matter (Document.Body is).
func Markdown(body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return defaultParser.md.Convert([]byte(body), w)
	})
}

package stages

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// MarkdownSchema describes the markdown stage options.
var MarkdownSchema = schema.Object(map[string]*schema.Schema{
	"unsafe": schema.Prop(schema.TypeBoolean, "keep raw HTML embedded in the Markdown"),
})

// Markdown renders Markdown (front matter removed) to HTML and exports it.
func Markdown() *loader.Definition {
	return &loader.Definition{
		Name:        "markdown",
		Description: "render Markdown to HTML",
		Schema:      MarkdownSchema,
		Normal: func(lc *loader.Context, content []byte) ([]byte, error) {
			var ropts []renderer.Option
			if lc.Options().BoolField("unsafe", false) {
				ropts = append(ropts, gmhtml.WithUnsafe())
			}
			md := goldmark.New(goldmark.WithRendererOptions(ropts...))

			_, body := splitFrontMatter(content)
			var buf bytes.Buffer
			if err := md.Convert(body, &buf); err != nil {
				return nil, err
			}
			return exportString(buf.String()), nil
		},
	}
}

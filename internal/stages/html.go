package stages

import (
	"bytes"
	"path"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// HTMLSchema describes the html stage options.
var HTMLSchema = schema.Object(map[string]*schema.Schema{
	"attributes": {
		Type:        schema.TypeArray,
		Description: "tag:attribute pairs whose local references become dependencies",
		Items:       schema.Prop(schema.TypeString, ""),
	},
})

var defaultHTMLAttributes = []string{"img:src", "link:href", "script:src", "source:src"}

// HTML parses and re-renders an HTML document, records local files it
// references as dependencies, and exports the normalised markup.
func HTML() *loader.Definition {
	return &loader.Definition{
		Name:        "html",
		Description: "normalise HTML and record referenced files",
		Schema:      HTMLSchema,
		Normal: func(lc *loader.Context, content []byte) ([]byte, error) {
			doc, err := html.Parse(bytes.NewReader(content))
			if err != nil {
				return nil, err
			}

			wanted := map[string]map[string]bool{}
			attrs := defaultHTMLAttributes
			if v, ok := lc.Options().Field("attributes"); ok {
				attrs = attrs[:0:0]
				for _, item := range v.Items() {
					attrs = append(attrs, item.Str())
				}
			}
			for _, a := range attrs {
				tag, attr, ok := strings.Cut(a, ":")
				if !ok {
					continue
				}
				if wanted[tag] == nil {
					wanted[tag] = map[string]bool{}
				}
				wanted[tag][attr] = true
			}

			dir := path.Dir(lc.ResourcePath())
			var walk func(*html.Node)
			walk = func(n *html.Node) {
				if n.Type == html.ElementNode && wanted[n.Data] != nil {
					for _, a := range n.Attr {
						if wanted[n.Data][a.Key] && isLocalReference(a.Val) {
							lc.AddDependency(path.Join(dir, a.Val))
						}
					}
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
			}
			walk(doc)

			var buf bytes.Buffer
			if err := html.Render(&buf, doc); err != nil {
				return nil, err
			}
			return exportString(buf.String()), nil
		},
	}
}

func isLocalReference(v string) bool {
	if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(v, "//") || strings.HasPrefix(v, "/") {
		return false
	}
	if i := strings.Index(v, ":"); i >= 0 && !strings.ContainsAny(v[:i], "/.") {
		return false // scheme such as https: or data:
	}
	return true
}

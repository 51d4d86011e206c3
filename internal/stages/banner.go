package stages

import (
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// BannerSchema accepts exactly one required string option, author.
var BannerSchema = schema.Object(map[string]*schema.Schema{
	"author": schema.Prop(schema.TypeString, "name written into the banner"),
}, "author")

// Banner prefixes content with an author comment.
func Banner() *loader.Definition {
	return &loader.Definition{
		Name:        "banner",
		Description: "prefix content with an author banner",
		Schema:      BannerSchema,
		Normal: func(lc *loader.Context, content []byte) ([]byte, error) {
			author := lc.Options().StringField("author", "")
			out := make([]byte, 0, len(content)+len(author)+16)
			out = append(out, "/**Author: "...)
			out = append(out, author...)
			out = append(out, "*/\n"...)
			return append(out, content...), nil
		},
	}
}

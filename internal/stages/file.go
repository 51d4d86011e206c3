package stages

import (
	"path"

	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// FileSchema describes the file stage options.
var FileSchema = schema.Object(map[string]*schema.Schema{
	"name":       schema.Prop(schema.TypeString, "name pattern, e.g. [name]-[hash:8].[ext]"),
	"outputPath": schema.Prop(schema.TypeString, "directory prefix of emitted files"),
})

// File emits content as a content-hashed file and replaces the module with
// an export of the emitted path.
func File(pattern, outputPath string) *loader.Definition {
	return &loader.Definition{
		Name:        "file",
		Description: "emit content as a hashed file and export its path",
		Schema:      FileSchema,
		Normal: func(lc *loader.Context, content []byte) ([]byte, error) {
			opts := lc.Options()
			name := opts.StringField("name", pattern)
			prefix := opts.StringField("outputPath", outputPath)
			if prefix != "" {
				name = path.Join(prefix, name)
			}
			emitted, err := lc.EmitFile(name, content)
			if err != nil {
				return nil, err
			}
			return exportString(emitted), nil
		},
	}
}

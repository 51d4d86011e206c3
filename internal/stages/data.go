package stages

import (
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

// YAML decodes a YAML document and exports it as a JSON module.
func YAML() *loader.Definition {
	return &loader.Definition{
		Name:        "yaml",
		Description: "export a YAML document as JSON",
		Normal: func(_ *loader.Context, content []byte) ([]byte, error) {
			var raw any
			if err := yaml.Unmarshal(content, &raw); err != nil {
				return nil, err
			}
			v, err := options.FromAny(raw)
			if err != nil {
				return nil, err
			}
			return []byte("module.exports = " + v.Canonical()), nil
		},
	}
}

// Raw exports text content as a string.
func Raw() *loader.Definition {
	return &loader.Definition{
		Name:        "raw",
		Description: "export content as a string",
		Normal: func(_ *loader.Context, content []byte) ([]byte, error) {
			return exportString(string(content)), nil
		},
	}
}

package stages

import (
	"bytes"
	"encoding/json"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// Options tunes built-ins that depend on configuration.
type Options struct {
	// FilePattern is the default name pattern of the file stage.
	FilePattern string
	// FileOutputPath prefixes every path emitted by the file stage.
	FileOutputPath string
}

// DefaultOptions mirrors the defaults of the configuration file.
func DefaultOptions() Options {
	return Options{FilePattern: "[hash].[ext][query]", FileOutputPath: "images/"}
}

// Builtins returns the definitions of every built-in stage.
func Builtins(opts Options) []*loader.Definition {
	if opts.FilePattern == "" {
		opts.FilePattern = DefaultOptions().FilePattern
	}
	return []*loader.Definition{
		Noop(),
		Banner(),
		File(opts.FilePattern, opts.FileOutputPath),
		Style(),
		CleanLog(),
		Markdown(),
		Fingerprint(),
		HTML(),
		YAML(),
		Raw(),
	}
}

// Register adds every built-in stage to reg.
func Register(reg *loader.Registry, opts Options) error {
	for _, def := range Builtins(opts) {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Noop passes content through unchanged.
func Noop() *loader.Definition {
	return &loader.Definition{Name: "noop", Description: "pass content through unchanged"}
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // encoding a string cannot fail
	return strings.TrimSuffix(buf.String(), "\n")
}

// exportString wraps s in a module exporting it.
func exportString(s string) []byte {
	return []byte("module.exports = " + jsString(s))
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(content []byte) (fm, body []byte) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, content
	}
	end := bytes.Index(content[4:], []byte("\n---\n"))
	if end < 0 {
		return nil, content
	}
	return content[4 : 4+end], content[4+end+5:]
}

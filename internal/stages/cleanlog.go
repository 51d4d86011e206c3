package stages

import (
	"regexp"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

var consoleLog = regexp.MustCompile(`console\.log\(.*\);?`)

// CleanLog removes console.log calls written on a single line.
func CleanLog() *loader.Definition {
	return &loader.Definition{
		Name:        "clean-log",
		Description: "strip console.log statements",
		Normal: func(_ *loader.Context, content []byte) ([]byte, error) {
			return consoleLog.ReplaceAll(content, nil), nil
		},
	}
}

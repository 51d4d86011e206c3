package stages

import (
	"fmt"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// Fingerprint adds or refreshes the fingerprint front matter field of a
// Markdown document. Malformed front matter fails the stage.
func Fingerprint() *loader.Definition {
	return &loader.Definition{
		Name:        "fingerprint",
		Description: "maintain the " + mdfp.FingerprintField + " front matter field",
		Normal: func(lc *loader.Context, content []byte) ([]byte, error) {
			updated, err := mdfp.ProcessContent(string(content))
			if err != nil {
				return nil, fmt.Errorf("fingerprint %s: %w", lc.ResourcePath(), err)
			}
			return []byte(updated), nil
		},
	}
}

package stages

import (
	"fmt"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// Style answers in the pitch pass with a script that imports the rest of the
// chain (as an inline "!!" request, bypassing configured rules) and appends
// the result to the document head as a <style> element.
func Style() *loader.Definition {
	return &loader.Definition{
		Name:        "style",
		Description: "inject the stylesheet produced by the rest of the chain",
		Pitch: func(lc *loader.Context) ([]byte, bool, error) {
			script := fmt.Sprintf(`import style from %s;
const styleEl = document.createElement("style");
styleEl.innerHTML = style;
document.head.appendChild(styleEl);
`, jsString("!!"+lc.RemainingRequest()))
			return []byte(script), true, nil
		},
	}
}

package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisualizeChain(t *testing.T) {
	h := newHarness(t, defaultRules(), nil)
	chain, _, err := h.coord.Matcher().ResolveChain("src/app.js")
	require.NoError(t, err)

	text, err := VisualizeChain("src/app.js", chain, FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, "Chain for src/app.js")
	assert.Contains(t, text, "[0] banner")
	assert.Contains(t, text, "pitch:  banner → noop")
	assert.Contains(t, text, "normal: noop → banner")

	mermaid, err := VisualizeChain("src/app.js", chain, FormatMermaid)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mermaid, "```mermaid\n"))
	assert.Contains(t, mermaid, "src --> s1")
	assert.Contains(t, mermaid, "s1 --> s0")

	dot, err := VisualizeChain("src/app.js", chain, FormatDOT)
	require.NoError(t, err)
	assert.Contains(t, dot, "digraph Chain {")
	assert.Contains(t, dot, `"s1" -> "s0";`)

	raw, err := VisualizeChain("src/app.js", chain, FormatJSON)
	require.NoError(t, err)
	var decoded struct {
		Module string      `json:"module"`
		Chain  []chainNode `json:"chain"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded.Chain, 2)
	assert.Equal(t, "banner", decoded.Chain[0].Name)
	assert.Equal(t, "rule 0", decoded.Chain[0].Origin)

	_, err = VisualizeChain("src/app.js", chain, "svg")
	assert.Error(t, err)
}

func TestVisualizeEmptyAndInlineChains(t *testing.T) {
	h := newHarness(t, defaultRules(), nil)

	text, err := VisualizeChain("notes.txt", nil, FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, "empty chain")

	chain, _, err := h.coord.Matcher().ResolveChain("!!short!a.css")
	require.NoError(t, err)
	text, err = VisualizeChain("!!short!a.css", chain, FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, "(pitch, inline)")
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// VisualizationFormat represents the output format for chain visualization.
type VisualizationFormat string

const (
	FormatText    VisualizationFormat = "text"
	FormatMermaid VisualizationFormat = "mermaid"
	FormatDOT     VisualizationFormat = "dot"
	FormatJSON    VisualizationFormat = "json"
)

// GetSupportedFormats returns the supported visualization formats.
func GetSupportedFormats() []VisualizationFormat {
	return []VisualizationFormat{FormatText, FormatMermaid, FormatDOT, FormatJSON}
}

// VisualizeChain renders the resolved chain of moduleID. Pitch handlers run
// first to last, normal handlers last to first.
func VisualizeChain(moduleID string, chain []*loader.StageDescriptor, format VisualizationFormat) (string, error) {
	switch format {
	case FormatText:
		return visualizeText(moduleID, chain), nil
	case FormatMermaid:
		return visualizeMermaid(moduleID, chain), nil
	case FormatDOT:
		return visualizeDOT(moduleID, chain), nil
	case FormatJSON:
		return visualizeJSON(moduleID, chain)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func origin(d *loader.StageDescriptor) string {
	if d.Rule == loader.InlineRule {
		return "inline"
	}
	return fmt.Sprintf("rule %d", d.Rule)
}

func visualizeText(moduleID string, chain []*loader.StageDescriptor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chain for %s\n", moduleID)
	sb.WriteString(strings.Repeat("=", len(moduleID)+10) + "\n\n")
	if len(chain) == 0 {
		sb.WriteString("(empty chain: content passes through unchanged)\n")
		return sb.String()
	}

	for i, d := range chain {
		prefix := "├──"
		if i == len(chain)-1 {
			prefix = "└──"
		}
		fmt.Fprintf(&sb, "%s [%d] %s", prefix, i, d.Request())
		var tags []string
		if d.Enforce != loader.EnforceNormal {
			tags = append(tags, string(d.Enforce))
		}
		if d.Loader.Pitch != nil {
			tags = append(tags, "pitch")
		}
		tags = append(tags, origin(d))
		fmt.Fprintf(&sb, " (%s)\n", strings.Join(tags, ", "))
	}

	names := loader.Names(chain)
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}
	fmt.Fprintf(&sb, "\npitch:  %s\n", strings.Join(names, " → "))
	fmt.Fprintf(&sb, "normal: %s\n", strings.Join(reversed, " → "))
	return sb.String()
}

func nodeID(i int) string { return fmt.Sprintf("s%d", i) }

func visualizeMermaid(moduleID string, chain []*loader.StageDescriptor) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")
	fmt.Fprintf(&sb, "    src[%q]\n", moduleID)
	for i, d := range chain {
		fmt.Fprintf(&sb, "    %s[%q]\n", nodeID(i), d.Name())
	}
	sb.WriteString("\n")
	prev := "src"
	for i := len(chain) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, nodeID(i))
		prev = nodeID(i)
	}
	for i, d := range chain {
		if d.Loader.Pitch != nil {
			fmt.Fprintf(&sb, "    %s -. pitch .-> %s\n", nodeID(i), nodeID(i))
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func visualizeDOT(moduleID string, chain []*loader.StageDescriptor) string {
	var sb strings.Builder
	sb.WriteString("digraph Chain {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	fmt.Fprintf(&sb, "    \"src\" [label=%q, shape=note];\n", moduleID)
	for i, d := range chain {
		fmt.Fprintf(&sb, "    %q [label=%q];\n", nodeID(i), d.Request())
	}
	sb.WriteString("\n")
	prev := "src"
	for i := len(chain) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "    %q -> %q;\n", prev, nodeID(i))
		prev = nodeID(i)
	}
	sb.WriteString("}\n")
	return sb.String()
}

type chainNode struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Request string `json:"request"`
	Enforce string `json:"enforce,omitempty"`
	Pitch   bool   `json:"pitch"`
	Normal  bool   `json:"normal"`
	Origin  string `json:"origin"`
}

func visualizeJSON(moduleID string, chain []*loader.StageDescriptor) (string, error) {
	nodes := make([]chainNode, 0, len(chain))
	for i, d := range chain {
		nodes = append(nodes, chainNode{
			Index:   i,
			Name:    d.Name(),
			Request: d.Request(),
			Enforce: string(d.Enforce),
			Pitch:   d.Loader.Pitch != nil,
			Normal:  d.Loader.Normal != nil,
			Origin:  origin(d),
		})
	}
	data, err := json.MarshalIndent(struct {
		Module string      `json:"module"`
		Chain  []chainNode `json:"chain"`
	}{moduleID, nodes}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

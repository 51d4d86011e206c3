package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/loadchain/internal/config"
)

// LoadersCmd implements the 'loaders' command.
type LoadersCmd struct {
	JSON bool `help:"Print as JSON"`
}

type loaderInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Pitch       bool   `json:"pitch"`
	Normal      bool   `json:"normal"`
	Options     bool   `json:"options"`
}

// Run lists the built-in stages. It needs no configuration file.
func (cmd *LoadersCmd) Run(g *Global, _ *CLI) error {
	reg, err := newRegistry(config.Default())
	if err != nil {
		return err
	}
	var infos []loaderInfo
	for _, name := range reg.Names() {
		def, _ := reg.Lookup(name)
		infos = append(infos, loaderInfo{
			Name:        def.Name,
			Description: def.Description,
			Pitch:       def.Pitch != nil,
			Normal:      def.Normal != nil,
			Options:     def.Schema != nil,
		})
	}

	if cmd.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPHASES\tDESCRIPTION")
	for _, info := range infos {
		phases := ""
		if info.Pitch {
			phases = "pitch"
		}
		if info.Normal {
			if phases != "" {
				phases += ","
			}
			phases += "normal"
		}
		if phases == "" {
			phases = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, phases, info.Description)
	}
	return w.Flush()
}

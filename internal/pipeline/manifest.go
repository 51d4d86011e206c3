package pipeline

import (
	"encoding/json"
	"errors"
	"sort"

	"git.home.luguber.info/inful/loadchain/internal/emit"
)

// ManifestModule describes one module of a build.
type ManifestModule struct {
	RunID        string   `json:"run_id"`
	Chain        []string `json:"chain"`
	Output       string   `json:"output,omitempty"`
	Emitted      []string `json:"emitted,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	ShortCircuit string   `json:"short_circuit,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Manifest lists the modules and emitted assets of a build.
type Manifest struct {
	Modules map[string]ManifestModule `json:"modules"`
	Assets  []emit.Record             `json:"assets"`
}

// NewManifest builds a manifest from batch results. Assets are the files
// referenced by the successful modules of this batch, sorted by path.
// outputs maps module IDs to the path their content was written to.
func NewManifest(results []BatchResult, outputs map[string]string) *Manifest {
	m := &Manifest{Modules: make(map[string]ManifestModule, len(results)), Assets: []emit.Record{}}
	seen := map[string]bool{}
	for _, r := range results {
		mod := ManifestModule{Output: outputs[r.Request.ModuleID]}
		if r.Err != nil {
			mod.Error = r.Err.Error()
			var pe *Error
			if errors.As(r.Err, &pe) {
				mod.RunID = pe.RunID
			}
		}
		if out := r.Output; out != nil {
			mod.RunID = out.RunID
			mod.Chain = out.Chain
			mod.Dependencies = out.Dependencies
			mod.ShortCircuit = out.ShortCircuit
			for _, rec := range out.References {
				mod.Emitted = append(mod.Emitted, rec.Path)
				if !seen[rec.Hash] {
					seen[rec.Hash] = true
					m.Assets = append(m.Assets, rec)
				}
			}
			sort.Strings(mod.Emitted)
		}
		if mod.Chain == nil {
			mod.Chain = []string{}
		}
		m.Modules[r.Request.ModuleID] = mod
	}
	sort.Slice(m.Assets, func(i, j int) bool { return m.Assets[i].Path < m.Assets[j].Path })
	return m
}

// Marshal returns the indented JSON form of m.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

package loader

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// NormalFunc transforms content produced by the next stage (or the raw
// resource for the last stage).
type NormalFunc func(lc *Context, content []byte) ([]byte, error)

// PitchFunc runs before any normal handler. Returning handled=true ends the
// pitch pass and makes result the input of the previous stage's normal handler.
type PitchFunc func(lc *Context) (result []byte, handled bool, err error)

// Definition is a stage implementation. A nil Normal handler is the identity.
type Definition struct {
	Name        string
	Description string
	Schema      *schema.Schema
	Normal      NormalFunc
	Pitch       PitchFunc
}

// Registry maps stage names to definitions. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]*Definition{}}
}

// Register adds def. Names must be unique and free of request delimiters.
func (r *Registry) Register(def *Definition) error {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("stage definition requires a name")
	}
	if strings.ContainsAny(def.Name, "!?") {
		return fmt.Errorf("stage name %q contains a reserved character", def.Name)
	}
	if def.Schema != nil {
		if err := def.Schema.Check(); err != nil {
			return fmt.Errorf("stage %q: %w", def.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("stage %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister registers defs and panics on the first error.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

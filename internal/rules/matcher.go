package rules

import (
	"fmt"
	"strings"
	"sync"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// NoMatchError reports a module that required a non-empty chain and got none,
// or an inline chain naming an unknown stage.
type NoMatchError struct {
	ModuleID string
	Ext      string
	Reason   string
}

func (e *NoMatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no chain for %s: %s", e.ModuleID, e.Reason)
	}
	return fmt.Sprintf("no stage matched %s (extension %s requires a chain)", e.ModuleID, e.Ext)
}

// Matcher resolves chains against a fixed list of compiled descriptors.
type Matcher struct {
	stages       []*loader.StageDescriptor
	registry     *loader.Registry
	requireMatch map[string]bool
	inline       sync.Map // name?canonical -> *loader.StageDescriptor
}

// NewMatcher returns a matcher. requireMatch lists extensions (".png") whose
// modules must resolve to a non-empty chain.
func NewMatcher(stages []*loader.StageDescriptor, reg *loader.Registry, requireMatch []string) *Matcher {
	m := &Matcher{stages: stages, registry: reg, requireMatch: map[string]bool{}}
	for _, ext := range requireMatch {
		m.requireMatch[strings.ToLower(ext)] = true
	}
	return m
}

// Stages returns the compiled descriptors in declaration order.
func (m *Matcher) Stages() []*loader.StageDescriptor { return m.stages }

// Registry returns the registry inline stages are looked up in.
func (m *Matcher) Registry() *loader.Registry { return m.registry }

// ResolveChain returns the chain for moduleID together with the parsed request.
func (m *Matcher) ResolveChain(moduleID string) ([]*loader.StageDescriptor, Request, error) {
	req, err := ParseRequest(moduleID)
	if err != nil {
		return nil, Request{}, &NoMatchError{ModuleID: moduleID, Reason: err.Error()}
	}
	if req.HasInline() {
		chain, err := m.inlineChain(req)
		return chain, req, err
	}

	var pre, normal, post []*loader.StageDescriptor
	for _, d := range m.stages {
		if !d.Matches(req.Identifier) {
			continue
		}
		switch d.Enforce {
		case loader.EnforcePre:
			pre = append(pre, d)
		case loader.EnforcePost:
			post = append(post, d)
		default:
			normal = append(normal, d)
		}
	}
	chain := make([]*loader.StageDescriptor, 0, len(pre)+len(normal)+len(post))
	chain = append(append(append(chain, post...), normal...), pre...)

	if len(chain) == 0 {
		if ext := req.Identifier.Ext(); m.requireMatch[ext] {
			return nil, req, &NoMatchError{ModuleID: moduleID, Ext: ext}
		}
	}
	return chain, req, nil
}

func (m *Matcher) inlineChain(req Request) ([]*loader.StageDescriptor, error) {
	chain := make([]*loader.StageDescriptor, 0, len(req.Inline))
	for _, seg := range req.Inline {
		key := seg.Name + "?" + seg.Options.Canonical()
		if d, ok := m.inline.Load(key); ok {
			chain = append(chain, d.(*loader.StageDescriptor))
			continue
		}
		var def *loader.Definition
		if m.registry != nil {
			def, _ = m.registry.Lookup(seg.Name)
		}
		if def == nil {
			return nil, &NoMatchError{
				ModuleID: req.Raw,
				Ext:      req.Identifier.Ext(),
				Reason:   fmt.Sprintf("unknown inline stage %q", seg.Name),
			}
		}
		d, _ := m.inline.LoadOrStore(key, &loader.StageDescriptor{
			Loader:  def,
			Options: seg.Options,
			Rule:    loader.InlineRule,
		})
		chain = append(chain, d.(*loader.StageDescriptor))
	}
	return chain, nil
}

package loader

import (
	"path"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/options"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// Identifier is a module resource: a path plus an optional query string
// that includes its leading '?'.
type Identifier struct {
	Path  string
	Query string
}

// String returns path and query as one request segment.
func (id Identifier) String() string { return id.Path + id.Query }

// Ext returns the lower-cased path extension including the dot.
func (id Identifier) Ext() string { return strings.ToLower(path.Ext(id.Path)) }

// Predicate decides whether a stage applies to a module.
type Predicate interface {
	Match(id Identifier) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(id Identifier) bool

func (f PredicateFunc) Match(id Identifier) bool { return f(id) }

// Enforce orders stages contributed by different rules.
type Enforce string

const (
	EnforceNormal Enforce = ""
	EnforcePre    Enforce = "pre"
	EnforcePost   Enforce = "post"
)

// InlineRule marks descriptors created from an inline request rather than a configured rule.
const InlineRule = -1

// StageDescriptor is one configured use of a stage. Descriptors are created
// once and shared by pointer between every chain that includes them.
type StageDescriptor struct {
	Predicate Predicate
	Loader    *Definition
	Options   options.Value
	Schema    *schema.Schema // overrides Loader.Schema when set
	Enforce   Enforce
	Rule      int // index of the declaring rule, or InlineRule
}

// Name returns the stage name.
func (d *StageDescriptor) Name() string {
	if d == nil || d.Loader == nil {
		return ""
	}
	return d.Loader.Name
}

// Request renders the stage as a request segment: its name, followed by
// ?<canonical options> when options are set.
func (d *StageDescriptor) Request() string {
	if d.Options.Empty() {
		return d.Name()
	}
	return d.Name() + "?" + d.Options.Canonical()
}

// EffectiveSchema returns the schema options are validated against.
func (d *StageDescriptor) EffectiveSchema() *schema.Schema {
	if d.Schema != nil {
		return d.Schema
	}
	if d.Loader == nil {
		return nil
	}
	return d.Loader.Schema
}

// Matches reports whether the descriptor applies to id. A nil predicate matches everything.
func (d *StageDescriptor) Matches(id Identifier) bool {
	return d.Predicate == nil || d.Predicate.Match(id)
}

// Requests renders each descriptor of chain with Request.
func Requests(chain []*StageDescriptor) []string {
	out := make([]string, len(chain))
	for i, d := range chain {
		out[i] = d.Request()
	}
	return out
}

// Names returns the stage names of chain.
func Names(chain []*StageDescriptor) []string {
	out := make([]string, len(chain))
	for i, d := range chain {
		out[i] = d.Name()
	}
	return out
}

package rules

import (
	"fmt"
	"path/filepath"
	"regexp"

	"git.home.luguber.info/inful/loadchain/internal/config"
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/options"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// Use is one stage contributed by a rule.
type Use struct {
	Loader  string
	Options options.Value
	Schema  *schema.Schema
}

// Rule is a compiled match rule. Nil conditions are ignored.
type Rule struct {
	Test          loader.Predicate
	Include       []loader.Predicate
	Exclude       []loader.Predicate
	ResourceQuery loader.Predicate
	Enforce       loader.Enforce
	Use           []Use
}

// Predicate combines the rule's conditions into one predicate.
func (r Rule) Predicate() loader.Predicate {
	var preds []loader.Predicate
	if r.Test != nil {
		preds = append(preds, r.Test)
	}
	if len(r.Include) > 0 {
		preds = append(preds, Any(r.Include...))
	}
	if len(r.Exclude) > 0 {
		preds = append(preds, Not(Any(r.Exclude...)))
	}
	if r.ResourceQuery != nil {
		preds = append(preds, r.ResourceQuery)
	}
	if len(preds) == 0 {
		return Always{}
	}
	return All(preds...)
}

// FromConfig compiles configured rules. Schema paths are resolved against baseDir.
func FromConfig(cfg []config.RuleConfig, baseDir string) ([]Rule, error) {
	out := make([]Rule, 0, len(cfg))
	for i, rc := range cfg {
		r := Rule{Enforce: loader.Enforce(rc.Enforce)}
		if rc.Test != "" {
			re, err := regexp.Compile(rc.Test)
			if err != nil {
				return nil, fmt.Errorf("rule %d: test: %w", i, err)
			}
			r.Test = Regexp{Re: re}
		}
		if rc.ResourceQuery != "" {
			re, err := regexp.Compile(rc.ResourceQuery)
			if err != nil {
				return nil, fmt.Errorf("rule %d: resource_query: %w", i, err)
			}
			r.ResourceQuery = Query{Re: re}
		}
		for _, s := range rc.Include {
			p, err := PathCondition(s)
			if err != nil {
				return nil, fmt.Errorf("rule %d: include %q: %w", i, s, err)
			}
			r.Include = append(r.Include, p)
		}
		for _, s := range rc.Exclude {
			p, err := PathCondition(s)
			if err != nil {
				return nil, fmt.Errorf("rule %d: exclude %q: %w", i, s, err)
			}
			r.Exclude = append(r.Exclude, p)
		}
		for _, u := range rc.Use {
			use := Use{Loader: u.Loader, Options: u.Options}
			if u.Schema != "" {
				path := u.Schema
				if !filepath.IsAbs(path) {
					path = filepath.Join(baseDir, path)
				}
				s, err := schema.ParseFile(path)
				if err != nil {
					return nil, fmt.Errorf("rule %d: %s: %w", i, u.Loader, err)
				}
				use.Schema = s
			}
			r.Use = append(r.Use, use)
		}
		out = append(out, r)
	}
	return out, nil
}

// Compile flattens rules into declaration-ordered stage descriptors, one per
// Use. Descriptors of the same rule share its predicate.
func Compile(rules []Rule, reg *loader.Registry) ([]*loader.StageDescriptor, error) {
	var out []*loader.StageDescriptor
	for i, r := range rules {
		pred := r.Predicate()
		for _, u := range r.Use {
			def, ok := reg.Lookup(u.Loader)
			if !ok {
				return nil, fmt.Errorf("rule %d: unknown loader %q (registered: %v)", i, u.Loader, reg.Names())
			}
			out = append(out, &loader.StageDescriptor{
				Predicate: pred,
				Loader:    def,
				Options:   u.Options,
				Schema:    u.Schema,
				Enforce:   r.Enforce,
				Rule:      i,
			})
		}
	}
	return out, nil
}

package rules

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/loader"
)

// Regexp matches the resource path against a regular expression.
type Regexp struct{ Re *regexp.Regexp }

func (p Regexp) Match(id loader.Identifier) bool { return p.Re.MatchString(id.Path) }

// Prefix matches resource paths starting with a prefix.
type Prefix string

func (p Prefix) Match(id loader.Identifier) bool {
	return strings.HasPrefix(strings.TrimPrefix(id.Path, "./"), strings.TrimPrefix(string(p), "./"))
}

// Query matches the resource query (without '?') against a regular expression.
type Query struct{ Re *regexp.Regexp }

func (p Query) Match(id loader.Identifier) bool {
	return p.Re.MatchString(strings.TrimPrefix(id.Query, "?"))
}

// Always matches every module.
type Always struct{}

func (Always) Match(loader.Identifier) bool { return true }

type all []loader.Predicate

func (a all) Match(id loader.Identifier) bool {
	for _, p := range a {
		if !p.Match(id) {
			return false
		}
	}
	return true
}

// All matches when every predicate matches. All() matches everything.
func All(preds ...loader.Predicate) loader.Predicate { return all(preds) }

type anyOf []loader.Predicate

func (a anyOf) Match(id loader.Identifier) bool {
	for _, p := range a {
		if p.Match(id) {
			return true
		}
	}
	return false
}

// Any matches when at least one predicate matches. Any() matches nothing.
func Any(preds ...loader.Predicate) loader.Predicate { return anyOf(preds) }

type not struct{ p loader.Predicate }

func (n not) Match(id loader.Identifier) bool { return !n.p.Match(id) }

// Not inverts p.
func Not(p loader.Predicate) loader.Predicate { return not{p} }

// RegexpMarker prefixes include/exclude entries that are regular expressions.
const RegexpMarker = "re:"

// PathCondition compiles an include/exclude entry. Entries starting with
// RegexpMarker (re:\.test\.js$) are regular expressions over the path;
// anything else, absolute paths included, is a path prefix.
func PathCondition(s string) (loader.Predicate, error) {
	if pattern, ok := strings.CutPrefix(s, RegexpMarker); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return Regexp{Re: re}, nil
	}
	return Prefix(s), nil
}

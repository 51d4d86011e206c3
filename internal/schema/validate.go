package schema

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/loadchain/internal/options"
)

// ValidationError reports the first options violation found for a stage.
type ValidationError struct {
	Stage  string
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stage %q: invalid options: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("stage %q: invalid option %q: %s", e.Stage, e.Key, e.Reason)
}

// Validate checks opts against s. A nil schema accepts anything and a null
// options value is treated as an empty object.
func Validate(stage string, opts options.Value, s *Schema) error {
	if s == nil {
		return nil
	}
	if opts.IsNull() && (s.Type == TypeObject || s.Type == TypeAny) {
		opts = options.Object(nil)
	}
	if reason := validate(opts, s, ""); reason != nil {
		reason.Stage = stage
		return reason
	}
	return nil
}

func validate(v options.Value, s *Schema, at string) *ValidationError {
	if !typeMatches(v, s.Type) {
		return &ValidationError{Key: at, Reason: fmt.Sprintf("expected %s, got %s", s.Type, v.Kind())}
	}
	if len(s.Enum) > 0 && v.Kind() == options.KindString && !slices.Contains(s.Enum, v.Str()) {
		return &ValidationError{Key: at, Reason: fmt.Sprintf("must be one of %v", s.Enum)}
	}

	switch v.Kind() {
	case options.KindObject:
		if s.Type != TypeObject && s.Properties == nil {
			return nil
		}
		keys := v.Keys()
		if !s.AdditionalProperties {
			for _, k := range keys {
				if _, declared := s.Properties[k]; !declared {
					return &ValidationError{Key: join(at, k), Reason: "unknown key (not declared in schema)"}
				}
			}
		}
		for _, req := range s.Required {
			if _, ok := v.Field(req); !ok {
				return &ValidationError{Key: join(at, req), Reason: "required key missing"}
			}
		}
		for _, k := range keys {
			prop, declared := s.Properties[k]
			if !declared || prop == nil {
				continue
			}
			field, _ := v.Field(k)
			if err := validate(field, prop, join(at, k)); err != nil {
				return err
			}
		}
	case options.KindArray:
		if s.Items == nil {
			return nil
		}
		for i, item := range v.Items() {
			if err := validate(item, s.Items, fmt.Sprintf("%s[%d]", at, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func typeMatches(v options.Value, t Type) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		return v.Kind() == options.KindString
	case TypeNumber:
		return v.Kind() == options.KindNumber
	case TypeInteger:
		return v.IsInteger()
	case TypeBoolean:
		return v.Kind() == options.KindBool
	case TypeObject:
		return v.Kind() == options.KindObject
	case TypeArray:
		return v.Kind() == options.KindArray
	default:
		return false
	}
}

// Validator caches validation outcomes for one pipeline session. A
// (stage, options) pair is checked at most once; stage descriptors are
// immutable so the outcome cannot change.
type Validator struct {
	results sync.Map // cacheKey -> *entry
	checks  atomic.Int64
}

type cacheKey struct {
	stage   string
	options string
	schema  *Schema
}

type entry struct {
	once sync.Once
	err  error
}

// NewValidator creates an empty session cache.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns the cached outcome for (stage, opts), validating on first use.
func (v *Validator) Validate(stage string, opts options.Value, s *Schema) error {
	if s == nil {
		return nil
	}
	key := cacheKey{stage: stage, options: opts.Canonical(), schema: s}
	actual, _ := v.results.LoadOrStore(key, &entry{})
	e := actual.(*entry)
	e.once.Do(func() {
		v.checks.Add(1)
		e.err = Validate(stage, opts, s)
	})
	return e.err
}

// Checks returns how many validations actually ran (cache misses).
func (v *Validator) Checks() int64 {
	return v.checks.Load()
}

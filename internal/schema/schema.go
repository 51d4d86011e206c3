// Package schema validates stage options against a JSON-Schema-like descriptor.
//
// Object schemas are closed: a key that is not declared under properties is
// rejected unless additionalProperties is set. Extending a stage's options
// without updating its schema must fail loudly.
package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Type is a primitive type constraint.
type Type string

const (
	TypeAny     Type = ""
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Schema describes the accepted shape of an options value.
type Schema struct {
	Type                 Type               `yaml:"type,omitempty"`
	Description          string             `yaml:"description,omitempty"`
	Properties           map[string]*Schema `yaml:"properties,omitempty"`
	Required             []string           `yaml:"required,omitempty"`
	AdditionalProperties bool               `yaml:"additionalProperties,omitempty"`
	Items                *Schema            `yaml:"items,omitempty"`
	Enum                 []string           `yaml:"enum,omitempty"`
}

// Object is a shorthand for a closed object schema.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// Prop is a shorthand for a primitive property schema.
func Prop(t Type, description string) *Schema {
	return &Schema{Type: t, Description: description}
}

// Parse decodes a schema document (YAML or JSON) and checks it is well formed.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseFile reads and decodes a schema file.
func ParseFile(path string) (*Schema, error) {
	// #nosec G304 - schema paths come from the user's own configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(data)
}

// Check verifies the schema itself only uses supported constructs.
func (s *Schema) Check() error {
	return s.check("")
}

func (s *Schema) check(at string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case TypeAny, TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
	default:
		return fmt.Errorf("schema %s: unsupported type %q", displayKey(at), s.Type)
	}
	if len(s.Properties) > 0 && s.Type != TypeObject && s.Type != TypeAny {
		return fmt.Errorf("schema %s: properties declared on %s", displayKey(at), s.Type)
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return fmt.Errorf("schema %s: required key %q is not declared", displayKey(at), req)
		}
	}
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.Properties[k].check(join(at, k)); err != nil {
			return err
		}
	}
	if s.Items != nil {
		return s.Items.check(at + "[]")
	}
	return nil
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func displayKey(at string) string {
	if at == "" {
		return "<root>"
	}
	return at
}

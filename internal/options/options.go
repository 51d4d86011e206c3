// Package options models stage options as a small closed variant type.
//
// Options arrive from YAML configuration or from inline request segments and
// are validated against a schema before any stage runs. Values are immutable;
// Object and Array copy their inputs.
package options

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is one options node.
type Value struct {
	kind  Kind
	str   string
	num   float64
	b     bool
	obj   map[string]Value
	items []Value
}

func Null() Value            { return Value{} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Array(v ...Value) Value { return Value{kind: KindArray, items: append([]Value(nil), v...)} }
func Object(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Str() string    { return v.str }
func (v Value) Num() float64   { return v.num }
func (v Value) Boolean() bool  { return v.b }
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// IsInteger reports whether v is a number without a fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && v.num == math.Trunc(v.num) && !math.IsInf(v.num, 0)
}

// Len returns the number of keys of an object or items of an array.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.obj)
	case KindArray:
		return len(v.items)
	default:
		return 0
	}
}

// Field returns the value stored under key of an object.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// StringField is a convenience accessor returning def when key is absent or not a string.
func (v Value) StringField(key, def string) string {
	if f, ok := v.Field(key); ok && f.kind == KindString {
		return f.str
	}
	return def
}

// BoolField returns the boolean stored under key, or def.
func (v Value) BoolField(key string, def bool) bool {
	if f, ok := v.Field(key); ok && f.kind == KindBool {
		return f.b
	}
	return def
}

// Keys returns the object's keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether v carries no option data (null or an empty object).
func (v Value) Empty() bool {
	return v.kind == KindNull || (v.kind == KindObject && len(v.obj) == 0)
}

// FromAny converts a decoded YAML/JSON tree into a Value.
func FromAny(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Value{kind: KindArray, items: items}, nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	case map[any]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			ks, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("non-string key %v", k)
			}
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", ks, err)
			}
			obj[ks] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		return Value{}, fmt.Errorf("unsupported option type %T", in)
	}
}

// Interface converts v back into plain Go values.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// UnmarshalYAML lets a Value be decoded directly from configuration.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes YAML or JSON text into a Value.
func Parse(data []byte) (Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("parse options: %w", err)
	}
	return FromAny(raw)
}

// ParseQuery decodes inline options: a JSON object or k=v&k2=v2 pairs.
func ParseQuery(q string) (Value, error) {
	q = strings.TrimPrefix(q, "?")
	if q == "" {
		return Null(), nil
	}
	if strings.HasPrefix(q, "{") {
		v, err := Parse([]byte(q))
		if err != nil {
			return Value{}, err
		}
		if v.kind != KindObject {
			return Value{}, fmt.Errorf("inline options must be an object")
		}
		return v, nil
	}
	values, err := url.ParseQuery(q)
	if err != nil {
		return Value{}, fmt.Errorf("parse inline options: %w", err)
	}
	obj := make(map[string]Value, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			obj[k] = String(vs[0])
			continue
		}
		items := make([]Value, len(vs))
		for i, s := range vs {
			items[i] = String(s)
		}
		obj[k] = Value{kind: KindArray, items: items}
	}
	return Value{kind: KindObject, obj: obj}, nil
}

// MarshalJSON encodes v with object keys in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("unsupported number %v", v.num)
		}
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Canonical returns the deterministic compact JSON form of v.
func (v Value) Canonical() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}
	return string(b)
}

func (v Value) String() string { return v.Canonical() }

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool { return v.Canonical() == o.Canonical() }

package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loadchain/internal/options"
)

func bannerSchema() *Schema {
	return Object(map[string]*Schema{
		"author": Prop(TypeString, "Banner author"),
	}, "author")
}

func mustOptions(t *testing.T, src string) options.Value {
	t.Helper()
	v, err := options.Parse([]byte(src))
	require.NoError(t, err)
	return v
}

func TestValidateAcceptsDeclaredKeys(t *testing.T) {
	require.NoError(t, Validate("banner", mustOptions(t, `{author: X}`), bannerSchema()))
}

func TestValidateRejectsUndeclaredKey(t *testing.T) {
	cases := []string{
		`{author: X, age: 12}`,
		`{age: 12}`,
		`{author: X, zzz: true, aaa: 1}`,
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			err := Validate("banner", mustOptions(t, src), bannerSchema())
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "banner", verr.Stage)
			assert.Contains(t, verr.Reason, "unknown key")
		})
	}
}

func TestValidateRequiredAndTypes(t *testing.T) {
	tests := []struct {
		name   string
		opts   string
		key    string
		reason string
	}{
		{"missing required", `{}`, "author", "required key missing"},
		{"null options", `~`, "author", "required key missing"},
		{"wrong type", `{author: 12}`, "author", "expected string, got number"},
		{"not an object", `[1]`, "", "expected object, got array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("banner", mustOptions(t, tt.opts), bannerSchema())
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.key, verr.Key)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidateNested(t *testing.T) {
	s := Object(map[string]*Schema{
		"presets": {Type: TypeArray, Items: Prop(TypeString, "")},
		"output": Object(map[string]*Schema{
			"dir":   Prop(TypeString, ""),
			"level": {Type: TypeInteger},
			"mode":  {Type: TypeString, Enum: []string{"fast", "small"}},
		}),
	})

	require.NoError(t, Validate("x", mustOptions(t, `{presets: [a, b], output: {dir: out, level: 2, mode: fast}}`), s))

	var verr *ValidationError
	require.ErrorAs(t, Validate("x", mustOptions(t, `{presets: [a, 3]}`), s), &verr)
	assert.Equal(t, "presets[1]", verr.Key)

	require.ErrorAs(t, Validate("x", mustOptions(t, `{output: {level: 1.5}}`), s), &verr)
	assert.Equal(t, "output.level", verr.Key)

	require.ErrorAs(t, Validate("x", mustOptions(t, `{output: {extra: 1}}`), s), &verr)
	assert.Equal(t, "output.extra", verr.Key)

	require.ErrorAs(t, Validate("x", mustOptions(t, `{output: {mode: slow}}`), s), &verr)
	assert.Equal(t, "output.mode", verr.Key)
}

func TestAdditionalPropertiesOptIn(t *testing.T) {
	s := &Schema{Type: TypeObject, AdditionalProperties: true}
	require.NoError(t, Validate("x", mustOptions(t, `{anything: 1}`), s))
}

func TestNilSchemaAcceptsAnything(t *testing.T) {
	require.NoError(t, Validate("x", mustOptions(t, `{anything: 1}`), nil))
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`{
  "type": "object",
  "properties": {"author": {"type": "string"}},
  "additionalProperties": false,
  "required": ["author"]
}`))
	require.NoError(t, err)
	assert.Equal(t, TypeObject, s.Type)
	assert.Equal(t, []string{"author"}, s.Required)

	_, err = Parse([]byte(`{"type": "date"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"type": "object", "required": ["missing"]}`))
	require.Error(t, err)
}

func TestValidatorCachesPerStageAndOptions(t *testing.T) {
	v := NewValidator()
	s := bannerSchema()
	good := mustOptions(t, `{author: X}`)
	bad := mustOptions(t, `{author: X, age: 1}`)

	for range 3 {
		require.NoError(t, v.Validate("banner", good, s))
		require.Error(t, v.Validate("banner", bad, s))
	}
	assert.Equal(t, int64(2), v.Checks())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.Validate("other", good, s)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(3), v.Checks())
}

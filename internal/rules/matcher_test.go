package rules

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loadchain/internal/config"
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

func testRegistry() *loader.Registry {
	reg := loader.NewRegistry()
	for _, n := range []string{"a", "b", "c", "lint", "minify", "raw", "banner"} {
		reg.MustRegister(&loader.Definition{Name: n})
	}
	return reg
}

func re(s string) loader.Predicate { return Regexp{Re: regexp.MustCompile(s)} }

func TestResolveChainPreservesDeclarationOrder(t *testing.T) {
	reg := testRegistry()
	stages, err := Compile([]Rule{
		{Test: re(`\.js$`), Use: []Use{{Loader: "a"}, {Loader: "b"}}},
		{Test: re(`\.css$`), Use: []Use{{Loader: "raw"}}},
		{Test: re(`\.js$`), Use: []Use{{Loader: "c"}}},
	}, reg)
	require.NoError(t, err)
	m := NewMatcher(stages, reg, nil)

	chain, req, err := m.ResolveChain("src/app.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, loader.Names(chain))
	assert.Equal(t, "src/app.js", req.Identifier.Path)
	assert.Same(t, stages[0], chain[0], "descriptors are shared, not copied")

	chain, _, err = m.ResolveChain("src/app.css")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw"}, loader.Names(chain))
}

func TestResolveChainEnforceGroups(t *testing.T) {
	reg := testRegistry()
	stages, err := Compile([]Rule{
		{Test: re(`\.js$`), Enforce: loader.EnforcePre, Use: []Use{{Loader: "lint"}}},
		{Test: re(`\.js$`), Use: []Use{{Loader: "a"}}},
		{Test: re(`\.js$`), Enforce: loader.EnforcePost, Use: []Use{{Loader: "minify"}}},
		{Test: re(`\.js$`), Use: []Use{{Loader: "b"}}},
	}, reg)
	require.NoError(t, err)

	chain, _, err := NewMatcher(stages, reg, nil).ResolveChain("x.js")
	require.NoError(t, err)
	// pre stages sit last so their normal handler runs first.
	assert.Equal(t, []string{"minify", "a", "b", "lint"}, loader.Names(chain))
}

func TestResolveChainEmptyAndRequireMatch(t *testing.T) {
	reg := testRegistry()
	stages, err := Compile([]Rule{{Test: re(`\.js$`), Use: []Use{{Loader: "a"}}}}, reg)
	require.NoError(t, err)
	m := NewMatcher(stages, reg, []string{".PNG"})

	chain, _, err := m.ResolveChain("readme.txt")
	require.NoError(t, err)
	assert.Empty(t, chain)

	_, _, err = m.ResolveChain("img/logo.png")
	var nm *NoMatchError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, ".png", nm.Ext)
	assert.Equal(t, "img/logo.png", nm.ModuleID)
}

func TestResolveChainInlineOverrideWins(t *testing.T) {
	reg := testRegistry()
	stages, err := Compile([]Rule{{Test: re(`\.js$`), Use: []Use{{Loader: "a"}, {Loader: "b"}}}}, reg)
	require.NoError(t, err)
	m := NewMatcher(stages, reg, []string{".js"})

	chain, req, err := m.ResolveChain(`banner?{"author":"X"}!raw!src/app.js`)
	require.NoError(t, err)
	assert.Equal(t, []string{"banner", "raw"}, loader.Names(chain))
	assert.Equal(t, "X", chain[0].Options.StringField("author", ""))
	assert.Equal(t, loader.InlineRule, chain[0].Rule)
	assert.Equal(t, "src/app.js", req.Identifier.Path)

	again, _, err := m.ResolveChain(`banner?{"author":"X"}!src/other.js`)
	require.NoError(t, err)
	assert.Same(t, chain[0], again[0], "inline descriptors keep their identity")

	// An explicit empty inline chain is honoured even for require_match extensions.
	chain, _, err = m.ResolveChain("!!src/app.js")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestResolveChainUnknownInlineStage(t *testing.T) {
	m := NewMatcher(nil, testRegistry(), nil)
	_, _, err := m.ResolveChain("nope!src/app.js")
	var nm *NoMatchError
	require.ErrorAs(t, err, &nm)
	assert.Contains(t, nm.Error(), `unknown inline stage "nope"`)
}

func TestCompileUnknownLoader(t *testing.T) {
	_, err := Compile([]Rule{{Use: []Use{{Loader: "missing"}}}}, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown loader "missing"`)
}

func TestRulePredicateConditions(t *testing.T) {
	exclude, err := PathCondition("vendor/")
	require.NoError(t, err)
	include, err := PathCondition(`re:^src/`)
	require.NoError(t, err)
	r := Rule{
		Test:          re(`\.js$`),
		Include:       []loader.Predicate{include},
		Exclude:       []loader.Predicate{exclude},
		ResourceQuery: Query{Re: regexp.MustCompile(`^inline$`)},
	}
	p := r.Predicate()
	assert.True(t, p.Match(loader.Identifier{Path: "src/a.js", Query: "?inline"}))
	assert.False(t, p.Match(loader.Identifier{Path: "src/a.js"}))
	assert.False(t, p.Match(loader.Identifier{Path: "lib/a.js", Query: "?inline"}))
	assert.False(t, p.Match(loader.Identifier{Path: "vendor/a.js", Query: "?inline"}))
	assert.True(t, Rule{}.Predicate().Match(loader.Identifier{Path: "anything"}))

	_, err = PathCondition("re:(")
	assert.Error(t, err)
}

func TestPathConditionAbsolutePrefix(t *testing.T) {
	p, err := PathCondition("/src/")
	require.NoError(t, err)
	assert.True(t, p.Match(loader.Identifier{Path: "/src/app.js"}))
	assert.False(t, p.Match(loader.Identifier{Path: "lib/src/app.js"}))
	assert.False(t, p.Match(loader.Identifier{Path: "src/app.js"}))

	p, err = PathCondition(`re:(^|/)src/`)
	require.NoError(t, err)
	assert.True(t, p.Match(loader.Identifier{Path: "lib/src/app.js"}))
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "banner.schema.yaml"), []byte(`
type: object
properties:
  author: {type: string}
  year: {type: integer}
required: [author]
`), 0o600))

	cfg, err := config.Parse([]byte(`
rules:
  - test: '\.js$'
    exclude: ["vendor/"]
    enforce: post
    use:
      - loader: banner
        schema: banner.schema.yaml
        options: {author: X, year: 2024}
`))
	require.NoError(t, err)

	rules, err := FromConfig(cfg.Rules, dir)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, loader.EnforcePost, rules[0].Enforce)
	require.NotNil(t, rules[0].Use[0].Schema)
	assert.Contains(t, rules[0].Use[0].Schema.Properties, "year")
	assert.Equal(t, options.KindObject, rules[0].Use[0].Options.Kind())

	stages, err := Compile(rules, testRegistry())
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Same(t, rules[0].Use[0].Schema, stages[0].EffectiveSchema())
	assert.True(t, stages[0].Matches(loader.Identifier{Path: "src/x.js"}))
	assert.False(t, stages[0].Matches(loader.Identifier{Path: "vendor/x.js"}))

	_, err = FromConfig([]config.RuleConfig{{Use: []config.UseConfig{{Loader: "a", Schema: "missing.yaml"}}}}, dir)
	assert.Error(t, err)
}

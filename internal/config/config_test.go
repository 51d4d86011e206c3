package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
rules:
  - test: '\.js$'
    use:
      - loader: noop
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultHashLength, cfg.Emit.HashLength)
	assert.Equal(t, DefaultPattern, cfg.Emit.DefaultPattern)
	assert.Positive(t, cfg.Pipeline.Workers)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Mode)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Directory)
	assert.Equal(t, DefaultManifest, cfg.Output.Manifest)
	require.Len(t, cfg.Rules, 1)
	assert.True(t, cfg.Rules[0].Use[0].Options.IsNull())
}

func TestParseDecodesOptionsAndEnv(t *testing.T) {
	t.Setenv("LOADCHAIN_TEST_AUTHOR", "Ada")
	cfg, err := Parse([]byte(`
rules:
  - test: '\.js$'
    enforce: pre
    use:
      - loader: banner
        options:
          author: ${LOADCHAIN_TEST_AUTHOR}
retry:
  mode: EXPONENTIAL
`))
	require.NoError(t, err)
	use := cfg.Rules[0].Use[0]
	assert.Equal(t, "banner", use.Loader)
	assert.Equal(t, options.KindObject, use.Options.Kind())
	assert.Equal(t, "Ada", use.Options.StringField("author", ""))
	assert.Equal(t, EnforcePre, cfg.Rules[0].Enforce)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Mode)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty use", "rules:\n  - test: x\n    use: []\n"},
		{"bad regexp", "rules:\n  - test: '('\n    use: [{loader: noop}]\n"},
		{"bad enforce", "rules:\n  - enforce: middle\n    use: [{loader: noop}]\n"},
		{"missing loader", "rules:\n  - use: [{options: {a: 1}}]\n"},
		{"reserved char", "rules:\n  - use: [{loader: 'a!b'}]\n"},
		{"hash length", "emit:\n  hash_length: 100\n"},
		{"pattern without hash", "emit:\n  default_pattern: '[name].[ext]'\n"},
		{"negative workers", "pipeline:\n  workers: -1\n"},
		{"require_match without dot", "pipeline:\n  require_match: [png]\n"},
		{"unknown retry mode", "retry:\n  mode: random\n"},
		{"bad duration", "retry:\n  initial: soon\n"},
		{"negative retries", "retry:\n  max_retries: -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOADCHAIN_TEST_KEEP", "process")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LOADCHAIN_TEST_KEEP=file\nLOADCHAIN_TEST_FROM_FILE=dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LOADCHAIN_TEST_FROM_FILE") })

	path := filepath.Join(dir, "loadchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - use:
      - loader: banner
        options:
          author: ${LOADCHAIN_TEST_FROM_FILE}-${LOADCHAIN_TEST_KEEP}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-process", cfg.Rules[0].Use[0].Options.StringField("author", ""))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitWritesLoadableExample(t *testing.T) {
	t.Setenv("USER", "tester")
	path := filepath.Join(t.TempDir(), "loadchain.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "existing file must not be overwritten without force")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Rules, 5)
	assert.Equal(t, []string{".png", ".jpg"}, cfg.Pipeline.RequireMatch)
}

func TestNormalizeRetryBackoff(t *testing.T) {
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff(" Fixed "))
	assert.Equal(t, RetryBackoffLinear, NormalizeRetryBackoff("linear"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("other"))
}

// Package config loads the YAML configuration that declares match rules,
// emission settings and pipeline tuning.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

// Enforce places a rule's stages before (pre) or after (post) the unforced ones.
type Enforce string

const (
	EnforceNone Enforce = ""
	EnforcePre  Enforce = "pre"
	EnforcePost Enforce = "post"
)

// Config represents the application configuration.
type Config struct {
	Rules    []RuleConfig   `yaml:"rules"`
	Emit     EmitConfig     `yaml:"emit"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Retry    RetryConfig    `yaml:"retry"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RuleConfig declares one match rule and the stages it contributes.
type RuleConfig struct {
	Test          string      `yaml:"test,omitempty"`
	Include       []string    `yaml:"include,omitempty"`
	Exclude       []string    `yaml:"exclude,omitempty"`
	ResourceQuery string      `yaml:"resource_query,omitempty"`
	Enforce       Enforce     `yaml:"enforce,omitempty"`
	Use           []UseConfig `yaml:"use"`
}

// UseConfig references a registered loader with its options.
type UseConfig struct {
	Loader  string        `yaml:"loader"`
	Options options.Value `yaml:"options,omitempty"`
	Schema  string        `yaml:"schema,omitempty"` // path to a schema overriding the loader's own
}

// EmitConfig controls naming and storage of emitted files.
type EmitConfig struct {
	HashLength     int    `yaml:"hash_length"`
	DefaultPattern string `yaml:"default_pattern"`
	StoreDir       string `yaml:"store_dir,omitempty"` // empty keeps objects in memory
}

// PipelineConfig tunes the coordinator.
type PipelineConfig struct {
	Workers      int      `yaml:"workers"`
	RequireMatch []string `yaml:"require_match,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Manifest  string `yaml:"manifest"`
	Clean     bool   `yaml:"clean"`
}

// MetricsConfig enables the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads configPath, expands ${VAR} references (after loading .env files
// found next to it), applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	if _, err := loadEnvFiles(filepath.Dir(configPath)); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load environment file").
			Fatal().UserAction().Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().UserAction().WithContext("path", configPath).Build()
	}
	return Parse(data)
}

// Parse decodes configuration text, then applies defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").
			Fatal().UserAction().Build()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	if err := os.WriteFile(configPath, []byte(ExampleConfig), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}

// ExampleConfig is the document written by Init.
const ExampleConfig = `# loadchain configuration
rules:
  - test: '\.js$'
    exclude: ["vendor/"]
    use:
      - loader: banner
        options:
          author: "${USER}"
      - loader: clean-log
  - test: '\.css$'
    use:
      - loader: style
      - loader: raw
  - test: '\.(png|jpe?g|gif|svg)$'
    use:
      - loader: file
  - test: '\.md$'
    use:
      - loader: markdown
  - test: '\.md$'
    enforce: pre
    use:
      - loader: fingerprint

emit:
  hash_length: 20
  default_pattern: "[hash].[ext][query]"

pipeline:
  workers: 4
  require_match: [".png", ".jpg"]

retry:
  mode: linear
  initial: 50ms
  max: 1s
  max_retries: 2

output:
  directory: ./dist
  manifest: manifest.json
  clean: false

metrics:
  enabled: false
  listen: ":9464"
`

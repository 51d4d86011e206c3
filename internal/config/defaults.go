package config

import "runtime"

const (
	DefaultHashLength = 20
	DefaultPattern    = "[hash].[ext][query]"
	DefaultOutputDir  = "./dist"
	DefaultManifest   = "manifest.json"
	DefaultListen     = ":9464"
)

// Default returns a configuration with no rules and all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. Explicit settings are left untouched.
func (c *Config) ApplyDefaults() {
	if c.Emit.HashLength == 0 {
		c.Emit.HashLength = DefaultHashLength
	}
	if c.Emit.DefaultPattern == "" {
		c.Emit.DefaultPattern = DefaultPattern
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = min(runtime.NumCPU(), 8)
	}
	if c.Retry.Mode == "" {
		c.Retry.Mode = RetryBackoffLinear
	} else {
		c.Retry.Mode = NormalizeRetryBackoff(string(c.Retry.Mode))
	}
	if c.Retry.Initial == "" {
		c.Retry.Initial = "50ms"
	}
	if c.Retry.Max == "" {
		c.Retry.Max = "1s"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = DefaultOutputDir
	}
	if c.Output.Manifest == "" {
		c.Output.Manifest = DefaultManifest
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultListen
	}
}

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
)

// Validate checks the configuration after defaults were applied. The loader
// names are checked later, against the registry, when rules are compiled.
func (c *Config) Validate() error {
	for i, r := range c.Rules {
		if err := r.validate(); err != nil {
			return errors.ConfigError(err.Error()).WithContext("rule", i).Build()
		}
	}
	if c.Emit.HashLength < 1 || c.Emit.HashLength > 64 {
		return errors.ConfigError("emit.hash_length must be between 1 and 64").
			WithContext("hash_length", c.Emit.HashLength).Build()
	}
	if !strings.Contains(c.Emit.DefaultPattern, "hash]") {
		return errors.ConfigError("emit.default_pattern must contain a [hash] or [contenthash] token").
			WithContext("pattern", c.Emit.DefaultPattern).Build()
	}
	if c.Pipeline.Workers < 1 {
		return errors.ConfigError("pipeline.workers must be positive").
			WithContext("workers", c.Pipeline.Workers).Build()
	}
	for _, ext := range c.Pipeline.RequireMatch {
		if !strings.HasPrefix(ext, ".") {
			return errors.ConfigError("pipeline.require_match entries must start with '.'").
				WithContext("extension", ext).Build()
		}
	}
	if c.Retry.Mode == "" {
		return errors.ConfigError("retry.mode must be one of fixed, linear, exponential").Build()
	}
	for field, raw := range map[string]string{"retry.initial": c.Retry.Initial, "retry.max": c.Retry.Max} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return errors.ConfigError(field+" must be a positive duration").WithContext("value", raw).Build()
		}
	}
	if c.Retry.MaxRetries < 0 {
		return errors.ConfigError("retry.max_retries cannot be negative").Build()
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.ConfigError("metrics.listen is required when metrics are enabled").Build()
	}
	return nil
}

func (r RuleConfig) validate() error {
	if len(r.Use) == 0 {
		return fmt.Errorf("rule has no stages in use")
	}
	for _, pattern := range []string{r.Test, r.ResourceQuery} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	switch r.Enforce {
	case EnforceNone, EnforcePre, EnforcePost:
	default:
		return fmt.Errorf("invalid enforce %q (expected pre or post)", r.Enforce)
	}
	for j, u := range r.Use {
		if strings.TrimSpace(u.Loader) == "" {
			return fmt.Errorf("use[%d] has no loader", j)
		}
		if strings.ContainsAny(u.Loader, "!?") {
			return fmt.Errorf("use[%d] loader name %q contains a reserved character", j, u.Loader)
		}
	}
	return nil
}

// Package config loads the llamabind server configuration from YAML, JSON or
// TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llamabind/internal/binding"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr          = ":8080"
	DefaultEngine        = "llama"
	DefaultMaxQueueDepth = 32
	DefaultMaxWait       = 30 * time.Second
	DefaultMaxBodyBytes  = 1 << 20
)

// CORS configures cross-origin access to the HTTP API. Disabled by default.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins,omitempty" yaml:"origins,omitempty" toml:"origins,omitempty"`
	Methods []string `json:"methods,omitempty" yaml:"methods,omitempty" toml:"methods,omitempty"`
	Headers []string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// ModelEntry declares a model explicitly, or overrides the load settings of
// a model discovered in ModelsDir with the same ID.
type ModelEntry struct {
	ID             string `json:"id" yaml:"id" toml:"id"`
	binding.Config `yaml:",inline"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
// StateDir confines the HTTP state endpoints; empty disables them.
type Config struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir     string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	StateDir      string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
	BudgetMB      int    `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	MarginMB      int    `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`
	DefaultModel  string `json:"default_model" yaml:"default_model" toml:"default_model"`
	Engine        string `json:"engine" yaml:"engine" toml:"engine"`
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxQueueDepth int    `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	// Durations use time.ParseDuration syntax, e.g. "30s" or "10m".
	MaxWait      string       `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	IdleTTL      string       `json:"idle_ttl" yaml:"idle_ttl" toml:"idle_ttl"`
	OpTimeout    string       `json:"op_timeout" yaml:"op_timeout" toml:"op_timeout"`
	MaxBodyBytes int64        `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS         CORS         `json:"cors" yaml:"cors" toml:"cors"`
	Models       []ModelEntry `json:"models,omitempty" yaml:"models,omitempty" toml:"models,omitempty"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Validate checks durations, budget values and model entries.
func (c Config) Validate() error {
	if _, err := c.MaxWaitDuration(); err != nil {
		return err
	}
	if _, err := c.IdleTTLDuration(); err != nil {
		return err
	}
	if _, err := c.OpTimeoutDuration(); err != nil {
		return err
	}
	if c.BudgetMB < 0 || c.MarginMB < 0 {
		return fmt.Errorf("budget_mb and margin_mb must not be negative")
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("models[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("models[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if _, err := binding.ParseTensorSplit(m.TensorSplit); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
	}
	return nil
}

// MaxWaitDuration parses MaxWait; empty yields DefaultMaxWait.
func (c Config) MaxWaitDuration() (time.Duration, error) {
	return parseDuration("max_wait", c.MaxWait, DefaultMaxWait)
}

// IdleTTLDuration parses IdleTTL; empty yields 0 (no idle expiry).
func (c Config) IdleTTLDuration() (time.Duration, error) {
	return parseDuration("idle_ttl", c.IdleTTL, 0)
}

// OpTimeoutDuration parses OpTimeout; empty yields 0 (no per-request timeout).
func (c Config) OpTimeoutDuration() (time.Duration, error) {
	return parseDuration("op_timeout", c.OpTimeout, 0)
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

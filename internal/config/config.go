// Package config loads and validates the ouro run configuration.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	BaseURL      string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Path         string  `json:"path,omitempty" yaml:"path,omitempty"`
	Model        string  `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv    string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Attempts     int     `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	RetryDelayMS int     `json:"retry_delay_ms,omitempty" yaml:"retry_delay_ms,omitempty"`
	TimeoutMS    int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

type RestartConfig struct {
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	DelayMS  int `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
	GraceMS  int `json:"grace_ms,omitempty" yaml:"grace_ms,omitempty"`

	// Command overrides the default handoff command (the current executable
	// with its original arguments). Useful for source-hosted lineages, e.g.
	// ["go", "run", "agent.go"].
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
}

type PolicyConfig struct {
	// FallbackRestart controls whether a failed update cycle still restarts
	// the current version. Defaults to true: liveness over correctness.
	FallbackRestart *bool `json:"fallback_restart,omitempty" yaml:"fallback_restart,omitempty"`
}

type MarkerConfig struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

type IntegrityConfig struct {
	// Markers replaces the built-in marker set when non-empty.
	Markers []MarkerConfig `json:"markers,omitempty" yaml:"markers,omitempty"`
}

type PruneConfig struct {
	KeepBackups int `json:"keep_backups,omitempty" yaml:"keep_backups,omitempty"`
}

type Config struct {
	Version int `json:"version" yaml:"version"`

	// Target is the program file the update cycle reads and replaces.
	Target string `json:"target" yaml:"target"`

	// StateRoot holds run.pid and final.json. Defaults to <target dir>/.ouro.
	StateRoot string `json:"state_root,omitempty" yaml:"state_root,omitempty"`

	API       APIConfig       `json:"api,omitempty" yaml:"api,omitempty"`
	Restart   RestartConfig   `json:"restart,omitempty" yaml:"restart,omitempty"`
	Policy    PolicyConfig    `json:"policy,omitempty" yaml:"policy,omitempty"`
	Integrity IntegrityConfig `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	Prune     PruneConfig     `json:"prune,omitempty" yaml:"prune,omitempty"`
}

// Default returns a config with every defaultable field populated. Target is
// left empty; callers supply it from a file or flag before Validate.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads a YAML (or, by extension, JSON) config file, applies defaults,
// and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := decodeJSONStrict(b, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.StateRoot = strings.TrimSpace(cfg.StateRoot)
	if cfg.StateRoot == "" && cfg.Target != "" {
		cfg.StateRoot = filepath.Join(filepath.Dir(cfg.Target), ".ouro")
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		cfg.API.BaseURL = "https://api.openai.com"
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if strings.TrimSpace(cfg.API.Path) == "" {
		cfg.API.Path = "/v1/chat/completions"
	}
	if strings.TrimSpace(cfg.API.Model) == "" {
		cfg.API.Model = "gpt-4o"
	}
	if strings.TrimSpace(cfg.API.APIKeyEnv) == "" {
		cfg.API.APIKeyEnv = "OURO_API_KEY"
	}
	if cfg.API.Attempts == 0 {
		cfg.API.Attempts = 3
	}
	if cfg.API.RetryDelayMS == 0 {
		cfg.API.RetryDelayMS = 2000
	}
	if cfg.API.TimeoutMS == 0 {
		cfg.API.TimeoutMS = 120000 // 2 minutes per attempt
	}
	if cfg.API.Temperature == 0 {
		cfg.API.Temperature = 0.2
	}
	if cfg.Restart.Attempts == 0 {
		cfg.Restart.Attempts = 5
	}
	if cfg.Restart.DelayMS == 0 {
		cfg.Restart.DelayMS = 1500
	}
	if cfg.Restart.GraceMS == 0 {
		cfg.Restart.GraceMS = 400
	}
	cfg.Restart.Command = trimNonEmpty(cfg.Restart.Command)
	if cfg.Policy.FallbackRestart == nil {
		t := true
		cfg.Policy.FallbackRestart = &t
	}
	if cfg.Prune.KeepBackups == 0 {
		cfg.Prune.KeepBackups = 5
	}
}

func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if strings.TrimSpace(cfg.StateRoot) == "" {
		return fmt.Errorf("state_root is required")
	}
	if cfg.API.Attempts < 1 {
		return fmt.Errorf("api.attempts must be >= 1")
	}
	if cfg.API.RetryDelayMS < 0 {
		return fmt.Errorf("api.retry_delay_ms must be >= 0")
	}
	if cfg.API.TimeoutMS < 0 {
		return fmt.Errorf("api.timeout_ms must be >= 0")
	}
	if cfg.API.Temperature < 0 || cfg.API.Temperature > 2 {
		return fmt.Errorf("api.temperature must be within [0, 2]")
	}
	if cfg.Restart.Attempts < 1 {
		return fmt.Errorf("restart.attempts must be >= 1")
	}
	if cfg.Restart.DelayMS < 0 {
		return fmt.Errorf("restart.delay_ms must be >= 0")
	}
	if cfg.Restart.GraceMS < 0 {
		return fmt.Errorf("restart.grace_ms must be >= 0")
	}
	if cfg.Prune.KeepBackups < 0 {
		return fmt.Errorf("prune.keep_backups must be >= 0")
	}
	for i, m := range cfg.Integrity.Markers {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("integrity.markers[%d].name is required", i)
		}
		if strings.TrimSpace(m.Pattern) == "" {
			return fmt.Errorf("integrity.markers[%d].pattern is required", i)
		}
	}
	return nil
}

// FallbackRestart resolves the policy flag, defaulting to true when unset.
func (c *Config) FallbackRestart() bool {
	if c == nil || c.Policy.FallbackRestart == nil {
		return true
	}
	return *c.Policy.FallbackRestart
}

func trimNonEmpty(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

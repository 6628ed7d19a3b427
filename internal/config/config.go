// Package config loads the host configuration from a YAML file, with
// defaults that work out of the box against a local Ollama daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/dejaview/internal/store"
)

// Retention mirrors store.Policy in file-friendly units.
type Retention struct {
	MaxEntries int `yaml:"max_entries"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// Config is the full host configuration.
type Config struct {
	// Provider selects the inference client: ollama, openai or stub.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Endpoint is the base URL of an OpenAI-compatible localhost server;
	// only used when Provider is "openai".
	Endpoint string `yaml:"endpoint"`

	Retention Retention `yaml:"retention"`

	// IgnoreDomains lists glob patterns for domains that must never be
	// captured (banks, mail, anything private).
	IgnoreDomains []string `yaml:"ignore_domains"`
}

// ValidationResult represents the outcome of a config linting pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		Provider: "ollama",
		Retention: Retention{
			MaxEntries: store.DefaultPolicy.MaxEntries,
			MaxAgeDays: int(store.DefaultPolicy.MaxAge / (24 * time.Hour)),
		},
	}
}

// Dir returns the host's data directory (~/.dejaview).
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dejaview")
}

// Load reads the configuration at path. A missing file yields defaults;
// a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for completeness and sane bounds.
func (c *Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	switch c.Provider {
	case "ollama", "openai", "stub":
	case "":
		res.Valid = false
		res.Errors = append(res.Errors, "provider is required")
	default:
		res.Valid = false
		res.Errors = append(res.Errors, "unknown provider: "+c.Provider)
	}

	if c.Provider == "openai" && c.Endpoint == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "endpoint is required for the openai provider")
	}

	if c.Retention.MaxEntries <= 0 {
		res.Warnings = append(res.Warnings, "retention cap disabled; the store will grow without bound")
	}
	if c.Retention.MaxAgeDays <= 0 {
		res.Warnings = append(res.Warnings, "retention age disabled; stale memories are never evicted")
	}

	return res
}

// RetentionPolicy converts the file representation into the store's policy.
func (c *Config) RetentionPolicy() store.Policy {
	return store.Policy{
		MaxEntries: c.Retention.MaxEntries,
		MaxAge:     time.Duration(c.Retention.MaxAgeDays) * 24 * time.Hour,
	}
}

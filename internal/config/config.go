// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the captiongen service
type Config struct {
	Port          int          `yaml:"port"`
	Provider      string       `yaml:"provider"` // "openai", "claude", "mock", "local"
	Model         string       `yaml:"model"`
	ProcessSecret string       `yaml:"process_secret"` // master secret for credential encryption
	AdminToken    string       `yaml:"admin_token"`    // bearer token for the admin endpoints
	// CredentialsDir is where encrypted provider keys are persisted
	CredentialsDir string `yaml:"credentials_dir"`
	Quota         QuotaConfig  `yaml:"quota"`
	Cache         CacheConfig  `yaml:"cache"`
	Prompt        PromptConfig `yaml:"prompt"`
	// PlatformLimits overrides or extends the built-in platform table
	PlatformLimits map[string]int `yaml:"platform_limits"`
}

// QuotaConfig defines per-tier generation limits for the rolling window
type QuotaConfig struct {
	GuestLimit   int      `yaml:"guest_limit"`
	FreeLimit    int      `yaml:"free_limit"`
	PremiumLimit int      `yaml:"premium_limit"`
	PremiumUsers []string `yaml:"premium_users"` // user ids treated as premium
}

// CacheConfig controls the two cache tiers
type CacheConfig struct {
	Dir          string   `yaml:"dir"`           // durable tier directory
	TTL          Duration `yaml:"ttl"`           // content entry lifetime, e.g. "6h"
	LogicVersion string   `yaml:"logic_version"` // bump to invalidate all content entries
}

// Duration wraps time.Duration so YAML accepts "90m"-style strings
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// PromptConfig carries optional prompt overrides
type PromptConfig struct {
	SystemMessage    string            `yaml:"system_message"`
	ToneDescriptors  map[string]string `yaml:"tone_descriptors"`
	PlatformGuidance map[string]string `yaml:"platform_guidance"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the config
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks required fields and fills in defaults
func (c *Config) Validate() error {
	var errors []string

	if c.Port <= 0 {
		c.Port = 8080
	}

	if c.Provider == "" {
		c.Provider = "mock"
	}

	// ProcessSecret can be empty in YAML if it will come from the env var.
	// An empty secret degrades credential storage to obfuscation, which the
	// vault logs loudly; it is not a startup error.
	if c.ProcessSecret == "" {
		c.ProcessSecret = os.Getenv("PROCESS_SECRET")
	}

	if c.AdminToken == "" {
		c.AdminToken = os.Getenv("ADMIN_TOKEN")
	}

	if c.CredentialsDir == "" {
		c.CredentialsDir = "data/credentials"
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/cache"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = Duration(6 * time.Hour)
	}
	if c.Cache.LogicVersion == "" {
		c.Cache.LogicVersion = "v1"
	}

	if c.Quota.GuestLimit < 0 || c.Quota.FreeLimit < 0 || c.Quota.PremiumLimit < 0 {
		errors = append(errors, "quota limits must not be negative")
	}

	for platform, limit := range c.PlatformLimits {
		if limit <= 0 {
			errors = append(errors, fmt.Sprintf("platform_limits.%s must be positive", platform))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

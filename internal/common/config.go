// Package common provides shared utilities for Lootly
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Lootly
type Config struct {
	Environment string        `toml:"environment"`
	EBay        EbayConfig    `toml:"ebay"`
	Logging     LoggingConfig `toml:"logging"`
}

// EbayConfig holds eBay API credentials and client tuning.
type EbayConfig struct {
	ClientID     string `toml:"client_id"`     // App ID
	ClientSecret string `toml:"client_secret"` // Cert ID
	RedirectURI  string `toml:"redirect_uri"`  // RuName for the consent flow
	Sandbox      bool   `toml:"sandbox"`
	Marketplace  string `toml:"marketplace"`

	RateLimitPerDay    int    `toml:"rate_limit_per_day"`
	RateLimitPerSecond int    `toml:"rate_limit_per_second"`
	MaxRetries         int    `toml:"max_retries"`
	RetryDelay         string `toml:"retry_delay"`
	MaxRetryDelay      string `toml:"max_retry_delay"`
	Timeout            string `toml:"timeout"`
}

// GetTimeout parses and returns the request timeout duration
func (c *EbayConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryDelay parses and returns the base retry delay
func (c *EbayConfig) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// GetMaxRetryDelay parses and returns the retry delay ceiling
func (c *EbayConfig) GetMaxRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.MaxRetryDelay)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		EBay: EbayConfig{
			RedirectURI:        "https://localhost",
			Sandbox:            true,
			Marketplace:        "EBAY_US",
			RateLimitPerDay:    5000,
			RateLimitPerSecond: 10,
			MaxRetries:         3,
			RetryDelay:         "1s",
			MaxRetryDelay:      "60s",
			Timeout:            "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LOOTLY_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("LOOTLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("EBAY_APP_ID"); v != "" {
		config.EBay.ClientID = v
	}
	if v := os.Getenv("EBAY_CERT_ID"); v != "" {
		config.EBay.ClientSecret = v
	}
	if v := os.Getenv("EBAY_REDIRECT_URI"); v != "" {
		config.EBay.RedirectURI = v
	}
	if v := os.Getenv("EBAY_SANDBOX_MODE"); v != "" {
		config.EBay.Sandbox = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("EBAY_MARKETPLACE_ID"); v != "" {
		config.EBay.Marketplace = v
	}
	if v := os.Getenv("EBAY_RATE_LIMIT_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.EBay.RateLimitPerDay = n
		}
	}
	if v := os.Getenv("EBAY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.EBay.MaxRetries = n
		}
	}
	if v := os.Getenv("EBAY_TIMEOUT"); v != "" {
		config.EBay.Timeout = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the complete shepard configuration
type Config struct {
	Mode         string             `yaml:"mode" mapstructure:"mode"`
	Source       SourceConfig       `yaml:"source" mapstructure:"source"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Window       WindowConfig       `yaml:"window" mapstructure:"window"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// SourceConfig controls where opinion HTML is loaded from
type SourceConfig struct {
	Dir           string        `yaml:"dir" mapstructure:"dir"`           // Local directory holding <slug>.html
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"` // Remote base URL; overrides Dir when set
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig configures the classification oracle
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // Read from env, never written to disk
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds, per call
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// WindowConfig controls context windows in citation mode
type WindowConfig struct {
	Radius int `yaml:"radius" mapstructure:"radius"` // characters on each side of a citation
}

// ConcurrencyConfig bounds parallel oracle calls
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig throttles oracle calls per provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`

	// Providers overrides RequestsPerSecond for individual providers
	Providers map[string]float64 `yaml:"providers,omitempty" mapstructure:"providers"`
}

// RetryConfig controls the single bounded retry on transport failures
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" mapstructure:"backoff"`
}

// CacheConfig controls caching of oracle responses
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// OutputConfig controls the result sink
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Markdown bool   `yaml:"markdown" mapstructure:"markdown"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := ".shepard-cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".shepard", "cache")
	}

	return &Config{
		Mode: string(ModeWholeDocument),
		Source: SourceConfig{
			Dir:           ".",
			UserAgent:     "Shepard/0.1 (+https://github.com/ppiankov/shepard)",
			Timeout:       30 * time.Second,
			MaxBodyBytes:  20_000_000,
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "", // Provider default
			Timeout:     60,
			MaxTokens:   2048,
			Temperature: 0.2,
		},
		Window: WindowConfig{
			Radius: 500,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 0,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			MaxRetries: 1,
			Backoff:    time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			TTL:       7 * 24 * time.Hour,
			MemoryTTL: time.Hour,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if _, err := ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Window.Radius <= 0 {
		return fmt.Errorf("window radius must be positive, got %d", c.Window.Radius)
	}
	if c.Concurrency.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Concurrency.Workers)
	}
	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 1 {
		return fmt.Errorf("max_retries must be 0 or 1, got %d", c.Retry.MaxRetries)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	return nil
}

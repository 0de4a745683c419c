// Package config loads client configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/logging"
)

// Config holds all client configuration.
type Config struct {
	// Panel
	Host    string        `yaml:"host"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Client-side throttling (0 = unlimited)
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Default server for the CLI
	Server string `yaml:"server"`
}

func defaults() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		RateBurst: 1,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	return cfg, cfg.validate()
}

// LoadFile reads path, then lets environment variables override it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	cfg.Host = envOr("PTERO_HOST", cfg.Host)
	cfg.Token = envOr("PTERO_TOKEN", cfg.Token)
	cfg.Server = envOr("PTERO_SERVER", cfg.Server)
	cfg.Timeout = envDuration("PTERO_TIMEOUT", cfg.Timeout)
	cfg.RateLimit = envFloat("PTERO_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = envInt("PTERO_RATE_BURST", cfg.RateBurst)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
}

func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("PTERO_HOST is required")
	}
	if c.Token == "" {
		return fmt.Errorf("PTERO_TOKEN is required")
	}
	return nil
}

// Client returns the gateway configuration.
func (c *Config) Client() client.Config {
	return client.Config{
		Host:      c.Host,
		Token:     c.Token,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
		RateBurst: c.RateBurst,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		OutputPath: "stderr",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

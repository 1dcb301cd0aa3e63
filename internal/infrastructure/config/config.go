// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Wrapper   WrapperConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Surface   SurfaceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// WrapperConfig locates the wrapper descriptor this process serves.
type WrapperConfig struct {
	// DescriptorPath points at the TOML descriptor inside the generated
	// bundle. When empty, Name and HomeAddress build a default config.
	DescriptorPath string `envconfig:"WRAPPER_DESCRIPTOR" default:""`
	Name           string `envconfig:"WRAPPER_NAME" default:"Wrapped Site"`
	HomeAddress    string `envconfig:"WRAPPER_HOME" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SurfaceConfig tunes the HTTP-backed rendering surface.
type SurfaceConfig struct {
	TimeoutSeconds int `envconfig:"SURFACE_TIMEOUT_SECONDS" default:"30"`
	MaxRetries     int `envconfig:"SURFACE_MAX_RETRIES" default:"3"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "127.0.0.1",
		},
		Wrapper: WrapperConfig{
			Name: "Wrapped Site",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Surface: SurfaceConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
	}
}

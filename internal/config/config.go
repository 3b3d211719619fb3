// Package config loads the receiver's file configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level receiver configuration.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
}

// ListenConfig names the local ports for the session sideband channels.
type ListenConfig struct {
	EventPort   int `yaml:"event_port"`
	ControlPort int `yaml:"control_port"`
}

// PoolConfig sizes the packet buffer pools in bytes.
type PoolConfig struct {
	AudioBytes int `yaml:"audio_bytes"`
	VideoBytes int `yaml:"video_bytes"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{EventPort: 7010, ControlPort: 7011},
		Pool:    PoolConfig{AudioBytes: 1 << 20, VideoBytes: 8 << 20},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a yaml config file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, port := range map[string]int{
		"event_port":   c.Listen.EventPort,
		"control_port": c.Listen.ControlPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d (must be between 1-65535)", name, port)
		}
	}
	if c.Pool.AudioBytes <= 0 || c.Pool.VideoBytes <= 0 {
		return fmt.Errorf("pool sizes must be positive: audio=%d video=%d", c.Pool.AudioBytes, c.Pool.VideoBytes)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
}

// SlogLevel maps the configured level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

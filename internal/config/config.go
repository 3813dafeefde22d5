package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the relay daemon needs at startup.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Poll        PollConfig        `yaml:"poll"`
	Wallets     WalletConfig      `yaml:"wallets"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig controls the control-surface listen address.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MarketplaceConfig points at the remote task-marketplace API.
type MarketplaceConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PollConfig sets the three poller intervals, in seconds.
type PollConfig struct {
	OpenIntervalSeconds    int `yaml:"open_interval_seconds"`
	AgentIntervalSeconds   int `yaml:"agent_interval_seconds"`
	WatchedIntervalSeconds int `yaml:"watched_interval_seconds"`
}

// WalletConfig locates the static wallet files read at startup.
type WalletConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig mirrors pkg/logger.Config.
type LogConfig struct {
	Level   string          `yaml:"level"`
	Format  string          `yaml:"format"`
	Outputs []string        `yaml:"outputs"`
	Rotate  LogRotateConfig `yaml:"rotate"`
}

// LogRotateConfig caps file log outputs by size, backup count, and age.
type LogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
}

// Load parses the YAML config file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// Default returns a config with every default applied, for running without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// applyDefaults fills in reasonable values for fields the user left empty.
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":4455"
	}

	if c.Marketplace.BaseURL == "" {
		c.Marketplace.BaseURL = "https://api.stackstasker.com"
	}
	if c.Marketplace.TimeoutSeconds <= 0 {
		c.Marketplace.TimeoutSeconds = 15
	}

	if c.Poll.OpenIntervalSeconds <= 0 {
		c.Poll.OpenIntervalSeconds = 30
	}
	if c.Poll.AgentIntervalSeconds <= 0 {
		c.Poll.AgentIntervalSeconds = 45
	}
	if c.Poll.WatchedIntervalSeconds <= 0 {
		c.Poll.WatchedIntervalSeconds = 60
	}

	if c.Wallets.Dir == "" {
		c.Wallets.Dir = filepath.Join(baseDir, "wallets")
	} else if !filepath.IsAbs(c.Wallets.Dir) {
		c.Wallets.Dir = filepath.Join(baseDir, c.Wallets.Dir)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// MarketplaceTimeout returns the configured marketplace HTTP timeout.
func (c *Config) MarketplaceTimeout() time.Duration {
	return time.Duration(c.Marketplace.TimeoutSeconds) * time.Second
}

// OpenInterval returns the new-open-task poll interval.
func (c *Config) OpenInterval() time.Duration {
	return time.Duration(c.Poll.OpenIntervalSeconds) * time.Second
}

// AgentInterval returns the all-agent-task poll interval.
func (c *Config) AgentInterval() time.Duration {
	return time.Duration(c.Poll.AgentIntervalSeconds) * time.Second
}

// WatchedInterval returns the watched-task poll interval.
func (c *Config) WatchedInterval() time.Duration {
	return time.Duration(c.Poll.WatchedIntervalSeconds) * time.Second
}

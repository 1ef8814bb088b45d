// Package config provides configuration management for the CrewDesk CLI.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including the API base URL,
// credential store location, proxy configuration, and the local sandbox
// server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// BaseURL is the CrewDesk API origin, e.g. https://api.crewdesk.io.
	BaseURL string `yaml:"base-url"`

	// WebURL is the browser dashboard origin opened by the `open` command.
	WebURL string `yaml:"web-url"`

	// AuthStore is the path of the bbolt file credentials persist in.
	AuthStore string `yaml:"auth-store"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile routes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request-timeout"`

	// Sandbox configures the local development API server.
	Sandbox SandboxConfig `yaml:"sandbox"`
}

// SandboxConfig configures the `crewdesk sandbox` development server.
type SandboxConfig struct {
	// Port is the network port the sandbox server listens on.
	Port int `yaml:"port"`

	// AccessTokenTTL is the access token lifetime in seconds. Short values
	// are useful for exercising the refresh flow.
	AccessTokenTTL int `yaml:"access-token-ttl"`

	// Users are the accounts seeded at startup.
	Users []SandboxUser `yaml:"users"`
}

// SandboxUser is a seeded sandbox account.
type SandboxUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Default returns the built-in configuration used when no config file
// exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if expanded, err := ExpandHome(cfg.AuthStore); err == nil {
		cfg.AuthStore = expanded
	}
	return cfg
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if cfg.AuthStore, err = ExpandHome(cfg.AuthStore); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.crewdesk.io"
	}
	if c.WebURL == "" {
		c.WebURL = "https://app.crewdesk.io"
	}
	if c.AuthStore == "" {
		c.AuthStore = filepath.Join("~", ".crewdesk", "session.db")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30
	}
	if c.Sandbox.Port <= 0 {
		c.Sandbox.Port = 8317
	}
	if c.Sandbox.AccessTokenTTL <= 0 {
		c.Sandbox.AccessTokenTTL = 900
	}
}

// ExpandHome resolves a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

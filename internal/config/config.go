// Package config loads mcpdeck configuration: the organization in scope, the
// gateways to talk to, and ambient settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mcpdeck/internal/mcp"
)

// Config is the full mcpdeck configuration.
type Config struct {
	Org      string               `yaml:"org"`
	Gateways []*mcp.GatewayConfig `yaml:"gateways"`
	Log      LogConfig            `yaml:"log"`
	Cache    CacheConfig          `yaml:"cache"`
	DataDir  string               `yaml:"data_dir"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// CacheConfig sizes the collection cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			Capacity: 1024,
			TTL:      5 * time.Minute,
		},
	}
}

// Load loads configuration from the config file and environment variables.
// The file is optional.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := ConfigPath()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	return cfg, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcpdeck", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mcpdeck", "config.yaml")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcpdeck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "mcpdeck-data"
	}
	return filepath.Join(home, ".local", "share", "mcpdeck")
}

// loadFromFile loads configuration from a YAML file, expanding ${VAR}
// references so secrets can stay in the environment.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv applies environment variable overrides.
func loadFromEnv(cfg *Config) {
	if org := os.Getenv("MCPDECK_ORG"); org != "" {
		cfg.Org = org
	}
	if level := os.Getenv("MCPDECK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if dir := os.Getenv("MCPDECK_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
}

// Gateway looks up a configured gateway by name.
func (c *Config) Gateway(name string) (*mcp.GatewayConfig, error) {
	for _, g := range c.Gateways {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("gateway %q not configured", name)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Org == "" {
		return fmt.Errorf("org is required: set it in %s or MCPDECK_ORG", ConfigPath())
	}
	seen := make(map[string]bool)
	for _, g := range c.Gateways {
		if g.Name == "" || g.URL == "" {
			return fmt.Errorf("every gateway needs a name and url")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate gateway name %q", g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

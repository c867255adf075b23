// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default client values.
const (
	DefaultPriority = "normal"
	DefaultDuration = "5s"
	DefaultFormat   = "plain"
)

// Config represents the overlayctl configuration.
type Config struct {
	Show   ShowConfig   `toml:"show"`
	Status StatusConfig `toml:"status"`
	Watch  WatchConfig  `toml:"watch"`
}

// ShowConfig holds defaults for `overlayctl show`.
type ShowConfig struct {
	Priority string `toml:"priority"` // low, normal, high, critical
	Duration string `toml:"duration"` // "0" = indefinite
}

// StatusConfig holds defaults for `overlayctl status`.
type StatusConfig struct {
	Format string `toml:"format"` // plain, json, yaml
}

// WatchConfig holds watch UI settings.
type WatchConfig struct {
	ShowHelp bool `toml:"show_help"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Show: ShowConfig{
			Priority: DefaultPriority,
			Duration: DefaultDuration,
		},
		Status: StatusConfig{
			Format: DefaultFormat,
		},
		Watch: WatchConfig{
			ShowHelp: true,
		},
	}
}

// ConfigPath returns the path to the client config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "overlayd", "overlayctl.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Package config loads and persists the engine's tunable settings.
//
// Config file locations (priority order):
//  1. $ATLAS_CONFIG
//  2. ./atlas.yaml
//  3. $XDG_CONFIG_HOME/atlas/config.yaml
//  4. ~/.config/atlas/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath is the environment variable for an explicit config path.
	EnvConfigPath = "ATLAS_CONFIG"
	// ConfigFileName is the default config file name.
	ConfigFileName = "atlas.yaml"
	// ConfigDirName is the config directory name under XDG.
	ConfigDirName = "atlas"
)

// Config holds everything the host can tune without rebuilding.
type Config struct {
	Version int `yaml:"version"`

	// Interaction thresholds, in screen pixels.
	Interaction InteractionConfig `yaml:"interaction"`

	// Viewport tuning.
	Viewport ViewportConfig `yaml:"viewport"`

	// Session is the per-document UI state database.
	Session SessionConfig `yaml:"session"`
}

// InteractionConfig tunes the pointer state machine.
type InteractionConfig struct {
	// SnapThreshold is the connection snap radius in screen pixels.
	SnapThreshold float64 `yaml:"snap_threshold"`
	// ClickThreshold separates a click from a drag, in screen pixels.
	ClickThreshold float64 `yaml:"click_threshold"`
	// ConnectModifier is the modifier that starts a connection from a
	// node press: "ctrl", "alt" or "shift".
	ConnectModifier string `yaml:"connect_modifier"`
	// PanButton is the mouse button that always pans: "middle" or
	// "right". The primary button pans while space is held regardless.
	PanButton string `yaml:"pan_button"`
}

// ViewportConfig tunes culling and fit behavior.
type ViewportConfig struct {
	// CullBuffer widens the visible rectangle, in screen pixels.
	CullBuffer float64 `yaml:"cull_buffer"`
	// FitPadding is the margin used by fit-to-content, in screen pixels.
	FitPadding float64 `yaml:"fit_padding"`
	// CellSize is the spatial index grid cell size in canvas units.
	CellSize float64 `yaml:"cell_size"`
}

// SessionConfig locates the session database.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the defaults for a fresh installation.
func DefaultConfig() *Config {
	c := &Config{Version: 1}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Interaction.SnapThreshold <= 0 {
		c.Interaction.SnapThreshold = 24
	}
	if c.Interaction.ClickThreshold <= 0 {
		c.Interaction.ClickThreshold = 3
	}
	if c.Interaction.ConnectModifier == "" {
		c.Interaction.ConnectModifier = "ctrl"
	}
	if c.Interaction.PanButton == "" {
		c.Interaction.PanButton = "middle"
	}
	if c.Viewport.CullBuffer <= 0 {
		c.Viewport.CullBuffer = 100
	}
	if c.Viewport.FitPadding <= 0 {
		c.Viewport.FitPadding = 48
	}
	if c.Viewport.CellSize <= 0 {
		c.Viewport.CellSize = 500
	}
	if c.Session.Path == "" {
		c.Session.Path = defaultSessionPath()
	}
}

func defaultSessionPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", ConfigDirName, "session.db")
	}
	return "./atlas-session.db"
}

// Load finds and loads the config file, or returns defaults if none found.
// The second return is the path the config was loaded from, empty for
// defaults.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, path, nil
}

// Save writes the config to the given path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// FindConfigPath searches the standard locations in priority order and
// returns empty string if no config file exists.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

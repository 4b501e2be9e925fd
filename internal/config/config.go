// Package config provides configuration loading and structs for the capcluster server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/capcluster/internal/vector"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Watch      WatchConfig      `yaml:"watch"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects where session snapshots are persisted.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // sqlite, badger or none
	DatabasePath string `yaml:"database_path"`
	BadgerPath   string `yaml:"badger_path"`
}

// ClusteringConfig holds engine and session settings shared by all families.
type ClusteringConfig struct {
	DefaultCapacity int      `yaml:"default_capacity"`
	MaxIterations   int      `yaml:"max_iterations"`
	Distance        string   `yaml:"distance"`
	Normalize       bool     `yaml:"normalize"`
	Families        []string `yaml:"families"`
	MetricWorkers   int      `yaml:"metric_workers"`
}

// WatchConfig holds batch inbox settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// EnabledOrDefault returns whether /metrics is served; defaults to true when unset.
func (m *MetricsConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, expands paths
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given. Relative
// default paths resolve against the home directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(".")
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BadgerPath = expandPath(c.Storage.BadgerPath, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "badger", "none":
	default:
		return fmt.Errorf("invalid storage.backend %q (want sqlite, badger or none)", c.Storage.Backend)
	}
	if _, err := vector.Provider(c.Clustering.Distance); err != nil {
		return fmt.Errorf("invalid clustering.distance: %w", err)
	}
	if c.Clustering.DefaultCapacity < 1 {
		return fmt.Errorf("clustering.default_capacity must be >= 1, got %d", c.Clustering.DefaultCapacity)
	}
	if c.Clustering.MaxIterations < 1 {
		return fmt.Errorf("clustering.max_iterations must be >= 1, got %d", c.Clustering.MaxIterations)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

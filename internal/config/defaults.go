package config

import "github.com/hyperjump/capcluster/internal/session"

// DefaultFamilies are the descriptor families served when none are configured.
var DefaultFamilies = []string{"moments", "hu", "zernike", "sift", "hog", "cnn"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".capcluster/data/capcluster.db"
	}
	if cfg.Storage.BadgerPath == "" {
		cfg.Storage.BadgerPath = ".capcluster/data/badger"
	}
	if cfg.Clustering.DefaultCapacity == 0 {
		cfg.Clustering.DefaultCapacity = session.DefaultCapacity
	}
	if cfg.Clustering.MaxIterations == 0 {
		cfg.Clustering.MaxIterations = 100
	}
	if cfg.Clustering.Distance == "" {
		cfg.Clustering.Distance = "euclidean"
	}
	if cfg.Clustering.Families == nil {
		cfg.Clustering.Families = append([]string(nil), DefaultFamilies...)
	}
	if cfg.Clustering.MetricWorkers == 0 {
		cfg.Clustering.MetricWorkers = 4
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".yaml", ".yml"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "capcluster"
	}
}

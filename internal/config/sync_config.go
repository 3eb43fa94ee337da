package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Location placements for the push payload
const (
	PlacementFile = "file" // one "emplacement" on the parc-prep header
	PlacementLog  = "log"  // one "emplacement" per bille
)

// SyncConfig holds synchronization configuration
type SyncConfig struct {
	// ============ BASIC SETTINGS ============
	Enabled bool `yaml:"enabled"`

	// ============ SCHEDULING ============
	AutoSyncEnabled  bool `yaml:"auto_sync_enabled"`
	AutoSyncInterval int  `yaml:"auto_sync_interval"` // seconds
	SyncOnStartup    bool `yaml:"sync_on_startup"`

	// ============ LIMITS ============
	SyncTimeout int `yaml:"sync_timeout"` // seconds, per file push
	Workers     int `yaml:"workers"`      // files pushed in parallel
	HistoryKeep int `yaml:"history_keep"` // sync_history rows returned by default

	// ============ PAYLOAD ============
	LocationPlacement string `yaml:"location_placement"` // file, log
}

// Timeout returns the per-file push timeout
func (c *SyncConfig) Timeout() time.Duration {
	if c.SyncTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SyncTimeout) * time.Second
}

// Interval returns the auto-sync period
func (c *SyncConfig) Interval() time.Duration {
	if c.AutoSyncInterval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.AutoSyncInterval) * time.Second
}

// Validate checks values that cannot be defaulted silently
func (c *SyncConfig) Validate() error {
	switch c.LocationPlacement {
	case PlacementFile, PlacementLog:
	default:
		return fmt.Errorf("invalid location_placement %q (file, log)", c.LocationPlacement)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// LoadSyncConfig loads sync configuration from environment, then overlays
// the YAML profile at SYNC_CONFIG_PATH when one is set.
func LoadSyncConfig() (*SyncConfig, error) {
	cfg := getDefaultSyncConfig()

	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		if err := loadSyncConfigFromFile(configPath, cfg); err != nil {
			return nil, err
		}
		log.Printf("📄 Sync profile loaded from %s", configPath)
	}

	cfg.LocationPlacement = strings.ToLower(cfg.LocationPlacement)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSyncConfigFromFile overlays the YAML file onto cfg; absent keys keep their value
func loadSyncConfigFromFile(path string, cfg *SyncConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sync profile: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse sync profile %s: %w", path, err)
	}

	return nil
}

// getDefaultSyncConfig returns default sync configuration
func getDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled: getBoolEnv("SYNC_ENABLED", true),

		AutoSyncEnabled:  getBoolEnv("SYNC_AUTO_ENABLED", true),
		AutoSyncInterval: getIntEnv("SYNC_AUTO_INTERVAL", 300),
		SyncOnStartup:    getBoolEnv("SYNC_ON_STARTUP", true),

		SyncTimeout: getIntEnv("SYNC_TIMEOUT", 30),
		Workers:     getIntEnv("SYNC_WORKERS", 2),
		HistoryKeep: getIntEnv("SYNC_HISTORY_KEEP", 30),

		LocationPlacement: getEnv("LOCATION_PLACEMENT", PlacementFile),
	}
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

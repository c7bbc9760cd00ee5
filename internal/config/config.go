// Package config provides configuration management for the credential
// capture agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hfi/credential-capture-agent/internal/audit"
)

// Config represents the main configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Capture     CaptureConfig     `yaml:"capture"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// StorageConfig contains record store settings
type StorageConfig struct {
	Type   string       `yaml:"type"` // "memory", "redis" or "sqlite"
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"` //#nosec G117 -- Password field is intentional for Redis auth config
	DB       int    `yaml:"db"`
}

// SQLiteConfig contains SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CaptureConfig contains capture detector settings
type CaptureConfig struct {
	PasswordSelectors []string      `yaml:"password_selectors"`
	UsernameSelectors []string      `yaml:"username_selectors"`
	LoginTerms        []string      `yaml:"login_terms"`
	LoginURLTerms     []string      `yaml:"login_url_terms"`
	Debounce          time.Duration `yaml:"debounce"`
	BusBuffer         int           `yaml:"bus_buffer"`
}

// CorrelationConfig contains success-correlation settings
type CorrelationConfig struct {
	NavigationWindow time.Duration `yaml:"navigation_window"`
	PendingTTL       time.Duration `yaml:"pending_ttl"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	TokenKeys        []string      `yaml:"token_keys"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string       `yaml:"level"`
	Audit audit.Config `yaml:"audit"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8088",
		},
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
			},
			SQLite: SQLiteConfig{
				Path: "./records.db",
			},
		},
		Capture: CaptureConfig{
			Debounce:  500 * time.Millisecond,
			BusBuffer: 64,
		},
		Correlation: CorrelationConfig{
			NavigationWindow: 5 * time.Second,
			PendingTTL:       5 * time.Minute,
			SettleDelay:      time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			Audit: *audit.DefaultConfig(),
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// Load loads the configuration from file or environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Check for config file path in environment or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Sanitize and validate path to prevent path traversal
	configPath = sanitizeConfigPath(configPath)

	// Try to load config file
	data, err := os.ReadFile(configPath) //#nosec G304 -- config path is sanitized above
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// sanitizeConfigPath cleans and validates a config file path
func sanitizeConfigPath(path string) string {
	// Clean the path to remove any . or .. components
	cleaned := filepath.Clean(path)

	// If path is absolute, use it as-is (operator explicitly set full path)
	// If relative, ensure it doesn't escape the current directory
	if !filepath.IsAbs(cleaned) {
		// Remove any leading ../ components for relative paths
		for len(cleaned) > 2 && cleaned[:3] == "../" {
			cleaned = cleaned[3:]
		}
		if cleaned == ".." {
			cleaned = "config.yaml"
		}
	}

	return cleaned
}

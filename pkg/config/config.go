package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete DandiFS configuration.
//
// This structure captures all configurable aspects of the DandiFS server including:
//   - Logging configuration
//   - Archive API client settings
//   - Object store settings for zarr chunk access
//   - Protocol adapter configurations
//   - Metrics exposition
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DANDIFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Adapter Configuration Pattern:
// Each protocol adapter defines its own configuration type and decodes it from
// the opaque settings map of its adapters entry. The config package only knows
// the adapter type names; everything below that is owned by the adapter package.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Archive configures the DANDI archive API client
	Archive ArchiveConfig `mapstructure:"archive"`

	// ObjectStore configures S3 access for zarr chunk objects
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`

	// Adapters lists the protocol adapters to expose the tree through
	Adapters []AdapterConfig `mapstructure:"adapters" validate:"dive"`

	// Metrics controls the Prometheus exposition endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: console, json
	Format string `mapstructure:"format" validate:"required,oneof=console json"`
}

// ArchiveConfig configures the DANDI archive API client.
type ArchiveConfig struct {
	// APIURL is the base URL of the archive API
	APIURL string `mapstructure:"api_url" validate:"required,url"`

	// Token is the API token used for embargoed dandisets
	// Empty means anonymous access
	Token string `mapstructure:"token"`

	// Timeout bounds each metadata request end to end
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// RetryMaxElapsed bounds the total time spent retrying one request
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed" validate:"min=0"`

	// RequestsPerSecond caps the outbound request rate (0 = uncapped)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
}

// ObjectStoreConfig configures S3 access for zarr chunk objects.
type ObjectStoreConfig struct {
	// Bucket is the bucket holding zarr chunk objects
	Bucket string `mapstructure:"bucket" validate:"required"`

	// Region is the AWS region of the bucket
	Region string `mapstructure:"region" validate:"required"`

	// Endpoint is a custom S3 endpoint for test deployments (MinIO, Localstack)
	// Empty uses the standard AWS endpoint for the region
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	// AccessKeyID and SecretAccessKey are static credentials
	// Both empty means anonymous access (the public archive bucket)
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// UsePathStyle forces path-style bucket addressing (needed by MinIO)
	UsePathStyle bool `mapstructure:"use_path_style"`

	// MaxAttempts is the retry budget for S3 requests (0 = store default)
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=0"`
}

// AdapterConfig is one entry of the adapters list.
//
// The Type field selects the adapter implementation; Settings carries the
// adapter-specific configuration and is decoded by the matching factory.
type AdapterConfig struct {
	// Type selects the protocol adapter
	// Valid values: webdav, fuse
	Type string `mapstructure:"type" validate:"required,oneof=webdav fuse"`

	// Settings contains adapter-specific configuration
	Settings map[string]any `mapstructure:"settings"`
}

// Enabled reports whether the adapter entry is switched on.
//
// Entries are enabled by default; settings with an explicit enabled: false
// turn them off.
func (a AdapterConfig) Enabled() bool {
	enabled, ok := a.Settings["enabled"].(bool)
	if !ok {
		return true
	}
	return enabled
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the /metrics endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port the metrics server listens on
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DANDIFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty falls back to DANDIFS_CONFIG,
//     then the default search locations)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use DANDIFS_ prefix and underscores
	// Example: DANDIFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DANDIFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath == "" {
		configPath = os.Getenv("DANDIFS_CONFIG")
	}
	if configPath != "" {
		// Use explicitly specified config file. A missing file is an
		// error here: the user asked for this exact path.
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/dandifs/config.yaml,
		// then the working directory
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found during search is acceptable - use defaults
			return nil
		}
		// Other errors are problems
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dandifs")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "dandifs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

package config

import (
	"strings"
	"time"

	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/marmos91/dandifs/pkg/objectstore"
)

// DefaultWebDAVPort is the listening port injected into webdav adapter
// entries that do not carry one.
const DefaultWebDAVPort = 8080

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Adapter-specific defaults beyond the listening port are handled by the
//     adapter implementations themselves
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyArchiveDefaults(&cfg.Archive)
	applyObjectStoreDefaults(&cfg.ObjectStore)

	// Add default adapter if none configured
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = []AdapterConfig{
			{Type: "webdav"},
		}
	}

	applyAdapterDefaults(cfg.Adapters)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "console"
	}
}

// applyArchiveDefaults sets archive client defaults.
//
// The durations mirror the client's own fallbacks so that a generated
// config file shows the values that are actually in effect.
func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.APIURL == "" {
		cfg.APIURL = dandiapi.DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMaxElapsed == 0 {
		cfg.RetryMaxElapsed = 1 * time.Minute
	}
}

// applyObjectStoreDefaults sets object store defaults.
func applyObjectStoreDefaults(cfg *ObjectStoreConfig) {
	if cfg.Bucket == "" {
		cfg.Bucket = dandiapi.DefaultZarrBucket
	}
	if cfg.Region == "" {
		cfg.Region = objectstore.DefaultRegion
	}

	// Endpoint empty means the standard AWS endpoint.
	// MaxAttempts 0 keeps the store's own retry default.
}

// applyAdapterDefaults sets per-entry adapter defaults.
//
// Listing an adapter implies the intent to run it, so entries without an
// explicit enabled value are switched on. Everything else in the settings
// map is owned by the adapter; only the webdav listening port is injected
// here so that a generated config file shows the standard port.
func applyAdapterDefaults(adapters []AdapterConfig) {
	for i := range adapters {
		entry := &adapters[i]

		// Initialize map if nil
		if entry.Settings == nil {
			entry.Settings = make(map[string]any)
		}

		if _, ok := entry.Settings["enabled"]; !ok {
			entry.Settings["enabled"] = true
		}

		if entry.Type == "webdav" {
			if _, ok := entry.Settings["port"]; !ok {
				entry.Settings["port"] = DefaultWebDAVPort
			}
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false

	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

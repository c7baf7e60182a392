package config

import (
	"testing"
	"time"

	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/marmos91/dandifs/pkg/objectstore"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level INFO, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected default log format console, got %s", cfg.Logging.Format)
	}

	if cfg.Archive.APIURL != dandiapi.DefaultAPIURL {
		t.Errorf("Expected default API URL, got %s", cfg.Archive.APIURL)
	}
	if cfg.Archive.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Archive.Timeout)
	}
	if cfg.Archive.RetryMaxElapsed != 1*time.Minute {
		t.Errorf("Expected default retry_max_elapsed 1m, got %v", cfg.Archive.RetryMaxElapsed)
	}

	if cfg.ObjectStore.Bucket != dandiapi.DefaultZarrBucket {
		t.Errorf("Expected default bucket, got %s", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Region != objectstore.DefaultRegion {
		t.Errorf("Expected default region, got %s", cfg.ObjectStore.Region)
	}
	if cfg.ObjectStore.MaxAttempts != 0 {
		t.Errorf("Expected max_attempts left at 0, got %d", cfg.ObjectStore.MaxAttempts)
	}

	if len(cfg.Adapters) != 1 {
		t.Fatalf("Expected 1 default adapter, got %d", len(cfg.Adapters))
	}
	if cfg.Adapters[0].Type != "webdav" {
		t.Errorf("Expected default adapter webdav, got %s", cfg.Adapters[0].Type)
	}

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "error", Format: "json"},
		Archive: ArchiveConfig{
			APIURL:          "https://api.example.org/api",
			Token:           "tok",
			Timeout:         5 * time.Second,
			RetryMaxElapsed: 10 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Bucket:      "custom-bucket",
			Region:      "eu-central-1",
			MaxAttempts: 2,
		},
		Adapters: []AdapterConfig{
			{Type: "fuse", Settings: map[string]any{"mountpoint": "/mnt/d", "enabled": false}},
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9100},
	}
	ApplyDefaults(cfg)

	// Log level is normalized to uppercase, everything else untouched.
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level normalized to ERROR, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format json preserved, got %s", cfg.Logging.Format)
	}
	if cfg.Archive.APIURL != "https://api.example.org/api" {
		t.Errorf("Expected explicit API URL preserved, got %s", cfg.Archive.APIURL)
	}
	if cfg.Archive.Timeout != 5*time.Second {
		t.Errorf("Expected explicit timeout preserved, got %v", cfg.Archive.Timeout)
	}
	if cfg.ObjectStore.Bucket != "custom-bucket" {
		t.Errorf("Expected explicit bucket preserved, got %s", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.MaxAttempts != 2 {
		t.Errorf("Expected explicit max_attempts preserved, got %d", cfg.ObjectStore.MaxAttempts)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected explicit metrics port preserved, got %d", cfg.Metrics.Port)
	}

	if len(cfg.Adapters) != 1 {
		t.Fatalf("Expected adapter list untouched, got %d entries", len(cfg.Adapters))
	}
	if cfg.Adapters[0].Enabled() {
		t.Error("Expected explicit enabled: false preserved")
	}
	// Port injection is webdav-only.
	if _, ok := cfg.Adapters[0].Settings["port"]; ok {
		t.Error("Expected no port injected into fuse settings")
	}
}

func TestApplyDefaults_AdapterSettingsInjection(t *testing.T) {
	cfg := &Config{
		Adapters: []AdapterConfig{
			{Type: "webdav"},
			{Type: "fuse", Settings: map[string]any{"mountpoint": "/mnt/d"}},
		},
	}
	ApplyDefaults(cfg)

	webdavEntry := cfg.Adapters[0]
	if webdavEntry.Settings == nil {
		t.Fatal("Expected settings map initialized for webdav entry")
	}
	if enabled, ok := webdavEntry.Settings["enabled"].(bool); !ok || !enabled {
		t.Errorf("Expected enabled: true injected, got %v", webdavEntry.Settings["enabled"])
	}
	if port, ok := webdavEntry.Settings["port"].(int); !ok || port != DefaultWebDAVPort {
		t.Errorf("Expected port %d injected, got %v", DefaultWebDAVPort, webdavEntry.Settings["port"])
	}

	fuseEntry := cfg.Adapters[1]
	if enabled, ok := fuseEntry.Settings["enabled"].(bool); !ok || !enabled {
		t.Errorf("Expected enabled: true injected, got %v", fuseEntry.Settings["enabled"])
	}
	if mp, ok := fuseEntry.Settings["mountpoint"].(string); !ok || mp != "/mnt/d" {
		t.Errorf("Expected mountpoint preserved, got %v", fuseEntry.Settings["mountpoint"])
	}
}

func TestApplyDefaults_ExplicitWebDAVPortPreserved(t *testing.T) {
	cfg := &Config{
		Adapters: []AdapterConfig{
			{Type: "webdav", Settings: map[string]any{"port": 9999}},
		},
	}
	ApplyDefaults(cfg)

	if port, ok := cfg.Adapters[0].Settings["port"].(int); !ok || port != 9999 {
		t.Errorf("Expected explicit port 9999 preserved, got %v", cfg.Adapters[0].Settings["port"])
	}
}

func TestAdapterConfig_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		want     bool
	}{
		{"nil settings", nil, true},
		{"empty settings", map[string]any{}, true},
		{"explicit true", map[string]any{"enabled": true}, true},
		{"explicit false", map[string]any{"enabled": false}, false},
		{"non-bool value", map[string]any{"enabled": "false"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := AdapterConfig{Type: "webdav", Settings: tt.settings}
			if got := entry.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate, got: %v", err)
	}
	if len(cfg.Adapters) != 1 || cfg.Adapters[0].Type != "webdav" {
		t.Errorf("Expected single webdav adapter in default config, got %+v", cfg.Adapters)
	}
}

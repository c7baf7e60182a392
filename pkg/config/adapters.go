package config

import (
	"fmt"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/adapter"
	"github.com/marmos91/dandifs/pkg/adapter/fuse"
	"github.com/marmos91/dandifs/pkg/adapter/webdav"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/vfs"
	"github.com/mitchellh/mapstructure"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// This factory function centralizes adapter creation logic and makes it easy to:
//   - Add new protocol adapters
//   - Configure metrics for all adapters
//   - Handle adapter-specific initialization
//
// Parameters:
//   - cfg: The complete DandiFS configuration
//   - resolver: The tree resolver the adapters serve
//   - metricsResult: Metrics recorders for the adapters (nil fields = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be registered
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, resolver *vfs.Service, metricsResult *MetricsResult) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	for i, entry := range cfg.Adapters {
		if !entry.Enabled() {
			logger.Debug("Skipping disabled %s adapter", entry.Type)
			continue
		}

		switch entry.Type {
		case "webdav":
			adp, err := createWebDAVAdapter(entry.Settings, resolver, metricsResult.WebDAVMetrics)
			if err != nil {
				return nil, fmt.Errorf("adapters[%d]: %w", i, err)
			}
			adapters = append(adapters, adp)

		case "fuse":
			adp, err := createFUSEAdapter(entry.Settings, resolver, metricsResult.FUSEMetrics)
			if err != nil {
				return nil, fmt.Errorf("adapters[%d]: %w", i, err)
			}
			adapters = append(adapters, adp)

		default:
			return nil, fmt.Errorf("adapters[%d]: unknown adapter type %q (supported: webdav, fuse)", i, entry.Type)
		}
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

// createWebDAVAdapter decodes webdav settings and constructs the adapter.
func createWebDAVAdapter(settings map[string]any, resolver *vfs.Service, m metrics.WebDAVMetrics) (adapter.Adapter, error) {
	var davCfg webdav.WebDAVConfig
	if err := decodeAdapterSettings(settings, &davCfg); err != nil {
		return nil, fmt.Errorf("failed to decode webdav adapter config: %w", err)
	}

	// Catch user-supplied values the settings map smuggles past struct
	// validation of the top-level config.
	if davCfg.Port < 0 || davCfg.Port > 65535 {
		return nil, fmt.Errorf("webdav adapter: port %d out of range", davCfg.Port)
	}

	return webdav.New(davCfg, resolver, m), nil
}

// createFUSEAdapter decodes fuse settings and constructs the adapter.
func createFUSEAdapter(settings map[string]any, resolver *vfs.Service, m metrics.FUSEMetrics) (adapter.Adapter, error) {
	var fuseCfg fuse.FUSEConfig
	if err := decodeAdapterSettings(settings, &fuseCfg); err != nil {
		return nil, fmt.Errorf("failed to decode fuse adapter config: %w", err)
	}

	if fuseCfg.Mountpoint == "" {
		return nil, fmt.Errorf("fuse adapter: mountpoint is required")
	}

	return fuse.New(fuseCfg, resolver, m), nil
}

// decodeAdapterSettings decodes an opaque settings map into an adapter
// config struct. Durations may be given as strings ("30s").
func decodeAdapterSettings(settings map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     target,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	return decoder.Decode(settings)
}

package config

import (
	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/objectstore"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// MetricsResult contains all metrics-related components created from configuration.
//
// When metrics are disabled every field is nil. Each consumer treats a nil
// recorder as "record nothing", so the result can be wired through unchanged
// either way.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ResolverMetrics instruments path resolution
	ResolverMetrics vfs.Metrics

	// ArchiveMetrics instruments archive API requests
	ArchiveMetrics dandiapi.Metrics

	// ObjectStoreMetrics instruments S3 operations
	ObjectStoreMetrics objectstore.Metrics

	// WebDAVMetrics instruments the WebDAV adapter
	WebDAVMetrics metrics.WebDAVMetrics

	// FUSEMetrics instruments the FUSE adapter
	FUSEMetrics metrics.FUSEMetrics
}

// InitializeMetrics creates and initializes all metrics components based on
// configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed recorder instances for all components
//
// If metrics are disabled:
//   - Returns the zero result; nil recorders disable collection with no
//     overhead
//
// Call at most once per process: the recorder constructors register their
// collectors on the global registry.
//
// Parameters:
//   - cfg: The complete DandiFS configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	// Create metrics HTTP server
	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:             server,
		ResolverMetrics:    metrics.NewResolverMetrics(),
		ArchiveMetrics:     metrics.NewArchiveMetrics(),
		ObjectStoreMetrics: metrics.NewObjectStoreMetrics(),
		WebDAVMetrics:      metrics.NewWebDAVMetrics(),
		FUSEMetrics:        metrics.NewFUSEMetrics(),
	}
}

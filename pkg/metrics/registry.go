// Package metrics provides Prometheus metrics collection for DandiFS
// components.
//
// All metrics are optional. Until InitRegistry is called the
// constructors hand out no-op or nil recorders and components run with
// zero observability overhead.
//
// Usage:
//
//	// Initialize the global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create recorder instances for components
//	resolverMetrics := metrics.NewResolverMetrics()
//	webdavMetrics := metrics.NewWebDAVMetrics()
//
//	// Or pass nil for no-op behavior
//	client := dandiapi.New(cfg, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all DandiFS
	// metrics. Write-once through registryOnce, read-many afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call it before creating any recorder instances. Safe to call multiple
// times; only the first call takes effect. If never called, GetRegistry
// returns nil and every constructor yields a disabled recorder.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when
// metrics are disabled.
//
// Safe to call concurrently; the sync.Once in InitRegistry provides the
// happens-before edge that makes the registry value visible.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

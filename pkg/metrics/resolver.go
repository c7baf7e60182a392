package metrics

import (
	"time"

	"github.com/marmos91/dandifs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// resolverMetrics is the Prometheus implementation of vfs.Metrics.
//
// It observes full path resolutions, single-level lookups and child
// enumerations, labeled by the tree level they touched.
type resolverMetrics struct {
	resolvesTotal   *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	lookupsTotal    *prometheus.CounterVec
	lookupDuration  *prometheus.HistogramVec
	listsTotal      *prometheus.CounterVec
	listDuration    *prometheus.HistogramVec
	listChildren    *prometheus.HistogramVec
}

// remoteDurationBuckets covers operations that may cascade into archive
// or object store calls.
var remoteDurationBuckets = []float64{
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
	30.0,  // 30s
}

// NewResolverMetrics creates a Prometheus-backed vfs.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the
// resolver then records nothing. Create at most one per process: the
// collectors register themselves on the global registry.
func NewResolverMetrics() vfs.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &resolverMetrics{
		resolvesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_resolver_resolves_total",
				Help: "Total number of full path resolutions by status",
			},
			[]string{"status"},
		),
		resolveDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dandifs_resolver_resolve_duration_seconds",
				Help:    "Duration of full path resolutions in seconds",
				Buckets: remoteDurationBuckets,
			},
		),
		lookupsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_resolver_lookups_total",
				Help: "Total number of single-level lookups by tree level and status",
			},
			[]string{"level", "status"},
		),
		lookupDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dandifs_resolver_lookup_duration_seconds",
				Help:    "Duration of single-level lookups in seconds",
				Buckets: remoteDurationBuckets,
			},
			[]string{"level"},
		),
		listsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_resolver_lists_total",
				Help: "Total number of child enumerations by tree level and status",
			},
			[]string{"level", "status"},
		),
		listDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dandifs_resolver_list_duration_seconds",
				Help:    "Duration of child enumerations in seconds",
				Buckets: remoteDurationBuckets,
			},
			[]string{"level"},
		),
		listChildren: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dandifs_resolver_list_children",
				Help:    "Number of children produced per enumeration",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"level"},
		),
	}
}

// resolverStatus distinguishes not-found from real failures: probes for
// absent paths are routine client traffic, not errors.
func resolverStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case vfs.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

func (m *resolverMetrics) ObserveResolve(duration time.Duration, err error) {
	m.resolvesTotal.WithLabelValues(resolverStatus(err)).Inc()
	m.resolveDuration.Observe(duration.Seconds())
}

func (m *resolverMetrics) ObserveLookup(level string, duration time.Duration, err error) {
	m.lookupsTotal.WithLabelValues(level, resolverStatus(err)).Inc()
	m.lookupDuration.WithLabelValues(level).Observe(duration.Seconds())
}

func (m *resolverMetrics) ObserveList(level string, duration time.Duration, children int, err error) {
	m.listsTotal.WithLabelValues(level, resolverStatus(err)).Inc()
	m.listDuration.WithLabelValues(level).Observe(duration.Seconds())
	if err == nil {
		m.listChildren.WithLabelValues(level).Observe(float64(children))
	}
}

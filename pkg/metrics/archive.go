package metrics

import (
	"time"

	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// archiveMetrics is the Prometheus implementation of dandiapi.Metrics.
//
// It collects per-operation request counts, latency, retries and error
// rates for the archive REST client.
type archiveMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

// NewArchiveMetrics creates a Prometheus-backed dandiapi.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called),
// which makes the archive client fall back to its built-in no-op
// recorder. Create at most one per process.
func NewArchiveMetrics() dandiapi.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &archiveMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_archive_requests_total",
				Help: "Total number of archive API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dandifs_archive_request_duration_seconds",
				Help:    "Duration of archive API requests in seconds, retries included",
				Buckets: remoteDurationBuckets,
			},
			[]string{"operation"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_archive_retries_total",
				Help: "Total number of archive API retry attempts by operation",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_archive_errors_total",
				Help: "Total number of failed archive API requests by operation",
			},
			[]string{"operation"},
		),
	}
}

func (m *archiveMetrics) RecordRequest(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(operation).Inc()
	}

	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *archiveMetrics) RecordRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

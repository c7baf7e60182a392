package metrics

import (
	"time"

	"github.com/marmos91/dandifs/pkg/objectstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// objectStoreMetrics is the Prometheus implementation of
// objectstore.Metrics.
type objectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewObjectStoreMetrics creates a Prometheus-backed objectstore.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called),
// which makes the store fall back to its built-in no-op recorder.
// Create at most one per process.
func NewObjectStoreMetrics() objectstore.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &objectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_objectstore_operations_total",
				Help: "Total number of object store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dandifs_objectstore_operation_duration_seconds",
				Help:    "Duration of object store operations in seconds",
				Buckets: remoteDurationBuckets,
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_objectstore_bytes_transferred_total",
				Help: "Total bytes transferred from the object store",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_objectstore_errors_total",
				Help: "Total number of failed object store operations by operation",
			},
			[]string{"operation"},
		),
	}
}

func (m *objectStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(operation).Inc()
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *objectStoreMetrics) RecordBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

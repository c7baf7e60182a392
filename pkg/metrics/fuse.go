package metrics

import (
	"errors"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FUSEMetrics provides observability for FUSE adapter operations.
//
// This interface is optional - if not provided to the FUSE adapter, a
// no-op implementation is used with zero overhead.
type FUSEMetrics interface {
	// RecordOperation records a completed kernel operation (LOOKUP,
	// READDIR, GETATTR, OPEN, READ) with its duration and outcome.
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytesRead records bytes returned to the kernel by READ.
	RecordBytesRead(bytes int64)
}

// fuseMetrics is the Prometheus implementation of FUSEMetrics.
type fuseMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesRead         prometheus.Counter
}

// NewFUSEMetrics creates a Prometheus-backed FUSEMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled
// (InitRegistry not called). Create at most one per process.
func NewFUSEMetrics() FUSEMetrics {
	if !IsEnabled() {
		return &noopFUSEMetrics{}
	}

	reg := GetRegistry()

	return &fuseMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_fuse_operations_total",
				Help: "Total number of FUSE operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dandifs_fuse_operation_duration_seconds",
				Help: "Duration of FUSE operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
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
				},
			},
			[]string{"operation"},
		),
		bytesRead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dandifs_fuse_bytes_read_total",
				Help: "Total bytes returned to the kernel by READ operations",
			},
		),
	}
}

func (m *fuseMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	// ENOENT is routine kernel probing, not a failure.
	status := "success"
	switch {
	case errors.Is(err, syscall.ENOENT):
		status = "not_found"
	case err != nil:
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *fuseMetrics) RecordBytesRead(bytes int64) {
	m.bytesRead.Add(float64(bytes))
}

// noopFUSEMetrics is a no-op implementation of FUSEMetrics.
type noopFUSEMetrics struct{}

func (noopFUSEMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopFUSEMetrics) RecordBytesRead(bytes int64)                                         {}

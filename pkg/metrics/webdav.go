package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebDAVMetrics provides observability for WebDAV adapter requests.
//
// This interface is optional - if not provided to the WebDAV adapter, a
// no-op implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := metrics.NewWebDAVMetrics()
//	adapter := webdav.New(config, svc, m)
//
//	// Without metrics (no-op)
//	adapter := webdav.New(config, svc, nil)
type WebDAVMetrics interface {
	// RecordRequest records a completed request with its method,
	// duration and response status code.
	RecordRequest(method string, duration time.Duration, status int)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart(method string)

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd(method string)

	// RecordBytesServed records response body bytes sent to clients.
	RecordBytesServed(bytes int64)
}

// webdavMetrics is the Prometheus implementation of WebDAVMetrics.
type webdavMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesServed      prometheus.Counter
}

// NewWebDAVMetrics creates a Prometheus-backed WebDAVMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled
// (InitRegistry not called). Create at most one per process.
func NewWebDAVMetrics() WebDAVMetrics {
	if !IsEnabled() {
		return &noopWebDAVMetrics{}
	}

	reg := GetRegistry()

	return &webdavMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dandifs_webdav_requests_total",
				Help: "Total number of WebDAV requests by method and status class",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dandifs_webdav_request_duration_seconds",
				Help: "Duration of WebDAV requests in seconds, body streaming included",
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
					30.0,  // 30s
					60.0,  // 1min
				},
			},
			[]string{"method"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dandifs_webdav_requests_in_flight",
				Help: "Current number of WebDAV requests being processed",
			},
			[]string{"method"},
		),
		bytesServed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dandifs_webdav_bytes_served_total",
				Help: "Total response body bytes served to WebDAV clients",
			},
		),
	}
}

func (m *webdavMetrics) RecordRequest(method string, duration time.Duration, status int) {
	class := fmt.Sprintf("%dxx", status/100)
	m.requestsTotal.WithLabelValues(method, class).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *webdavMetrics) RecordRequestStart(method string) {
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *webdavMetrics) RecordRequestEnd(method string) {
	m.requestsInFlight.WithLabelValues(method).Dec()
}

func (m *webdavMetrics) RecordBytesServed(bytes int64) {
	m.bytesServed.Add(float64(bytes))
}

// noopWebDAVMetrics is a no-op implementation of WebDAVMetrics.
type noopWebDAVMetrics struct{}

func (noopWebDAVMetrics) RecordRequest(method string, duration time.Duration, status int) {}
func (noopWebDAVMetrics) RecordRequestStart(method string)                                {}
func (noopWebDAVMetrics) RecordRequestEnd(method string)                                  {}
func (noopWebDAVMetrics) RecordBytesServed(bytes int64)                                   {}

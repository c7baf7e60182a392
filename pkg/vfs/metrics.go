package vfs

import "time"

// Metrics receives resolver timing observations.
//
// Implementations must be safe for concurrent use. The interface is
// optional: a Service built without WithMetrics records nothing.
type Metrics interface {
	// ObserveResolve records one full path resolution.
	ObserveResolve(duration time.Duration, err error)

	// ObserveLookup records one single-level child lookup. level is the
	// node kind label of the parent.
	ObserveLookup(level string, duration time.Duration, err error)

	// ObserveList records one child enumeration. children is the number
	// of entries produced.
	ObserveList(level string, duration time.Duration, children int, err error)
}

// noopMetrics is the zero-overhead recorder used when none is injected.
type noopMetrics struct{}

func (noopMetrics) ObserveResolve(duration time.Duration, err error)               {}
func (noopMetrics) ObserveLookup(level string, duration time.Duration, err error)  {}
func (noopMetrics) ObserveList(level string, duration time.Duration, children int, err error) {
}

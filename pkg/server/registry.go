package server

import (
	"fmt"
	"sync"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/adapter"
)

// Registry tracks the protocol adapters a server runs, keyed by
// protocol name.
//
// Registration order is preserved: the server starts adapters in the
// order they were registered and stops them in reverse.
type Registry struct {
	mu      sync.RWMutex
	byProto map[string]adapter.Adapter
	ordered []adapter.Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byProto: make(map[string]adapter.Adapter)}
}

// Register adds a protocol adapter.
//
// Each adapter must speak a distinct protocol and, when it listens on
// a socket, use a distinct port. Adapters that report port 0 either do
// not listen at all or have not bound yet, so they are exempt from the
// conflict check.
//
// Panics if the adapter is nil.
func (r *Registry) Register(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	protocol := a.Protocol()
	if _, exists := r.byProto[protocol]; exists {
		return fmt.Errorf("adapter for protocol %s already registered", protocol)
	}

	port := a.Port()
	if port != 0 {
		for _, existing := range r.ordered {
			if existing.Port() == port {
				return fmt.Errorf("port %d already in use by %s adapter",
					port, existing.Protocol())
			}
		}
	}

	r.byProto[protocol] = a
	r.ordered = append(r.ordered, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// Get returns the adapter registered for the given protocol.
func (r *Registry) Get(protocol string) (adapter.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byProto[protocol]
	return a, ok
}

// Adapters returns a snapshot of the registered adapters in
// registration order.
//
// The returned slice is a copy and safe to iterate without holding
// locks.
func (r *Registry) Adapters() []adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(r.ordered))
	copy(adapters, r.ordered)
	return adapters
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ordered)
}

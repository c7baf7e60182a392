// Package vfs resolves archive paths against a DANDI-style metadata
// service and an object store, exposing datasets, versions, asset trees
// and chunked object trees as one lazily materialized resource tree.
//
// Nothing is enumerated eagerly: resolving a path touches exactly the
// levels the path names, and each level issues at most one remote
// listing. Absence is a first-class answer carried by *Error, never a
// panic or a special value.
package vfs

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/dandifs/internal/logger"
)

// Service is the archive resolver. It owns no caches and keeps no
// per-request state; every operation is parameterized by context and
// shares the injected gateway clients.
type Service struct {
	archive Archive
	objects ObjectStore
	metrics Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches resolver instrumentation. A nil recorder leaves
// the no-op recorder in place.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New builds a resolver over the given archive service and object store.
func New(archive Archive, objects ObjectStore, opts ...Option) *Service {
	s := &Service{
		archive: archive,
		objects: objects,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the tree root. The root always exists and is built
// without remote calls.
func (s *Service) Root() *Node {
	return &Node{kind: KindRoot, svc: s, path: "", name: "/"}
}

// Resolve walks path from the root one segment at a time and returns the
// node the full path names. Empty segments produced by leading, trailing
// or doubled slashes are skipped, so "/a//b/" resolves like "a/b".
//
// Resolution cost is proportional to the path's depth: each segment
// performs one child lookup at its level and nothing below or beside it.
func (s *Service) Resolve(ctx context.Context, path string) (*Node, error) {
	start := time.Now()
	node := s.Root()
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		child, err := node.Child(ctx, segment)
		if err != nil {
			if IsNotFound(err) {
				logger.Debug("Resolve %q: no %q under %q", path, segment, node.path)
			}
			s.metrics.ObserveResolve(time.Since(start), err)
			return nil, err
		}
		node = child
	}
	s.metrics.ObserveResolve(time.Since(start), nil)
	return node, nil
}

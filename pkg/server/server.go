package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/adapter"
	"github.com/marmos91/dandifs/pkg/metrics"
)

// stopTimeout bounds the graceful shutdown of all adapters. The budget
// is shared: a slow adapter eats into the time left for the ones
// stopped after it.
const stopTimeout = 30 * time.Second

// Server manages the lifecycle of the protocol adapters that expose
// one resolved archive tree.
//
// Architecture:
// Every adapter (WebDAV, FUSE) is constructed around the same resolver
// service, so the tree looks identical regardless of the protocol used
// to browse it. The server itself only orchestrates lifecycles;
// adapters arrive fully wired.
//
// Lifecycle:
//  1. Creation: New() with a populated Registry
//  2. Startup: Serve() starts all adapters concurrently
//  3. Shutdown: context cancellation or the first fatal adapter error
//     triggers graceful shutdown of all adapters
//
// Thread safety:
// Server is safe for concurrent use. Serve() runs at most once per
// instance; later calls return an error.
//
// Example usage:
//
//	registry := server.NewRegistry()
//	registry.Register(webdav.New(webdavConfig, svc, davMetrics))
//	registry.Register(fuse.New(fuseConfig, svc, fuseMetrics))
//
//	srv := server.New(registry, metricsServer)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	registry *Registry

	// metricsServer optionally exposes /metrics alongside the
	// adapters. Nil when the metrics listener is disabled.
	metricsServer *metrics.Server

	// served flips when Serve runs; it never resets.
	served atomic.Bool
}

// New creates a Server running the adapters held by registry.
//
// metricsServer may be nil, which disables the metrics listener.
//
// Panics if registry is nil (indicates programmer error).
func New(registry *Registry, metricsServer *metrics.Server) *Server {
	if registry == nil {
		panic("registry cannot be nil")
	}

	return &Server{
		registry:      registry,
		metricsServer: metricsServer,
	}
}

// adapterError pairs an adapter protocol name with its error for
// error reporting.
type adapterError struct {
	protocol string
	err      error
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Serve orchestrates the lifecycle of all adapters:
//  1. Validates that at least one adapter is registered
//  2. Starts all adapters concurrently in separate goroutines,
//     plus the metrics listener when one is configured
//  3. Monitors for context cancellation or adapter failures
//  4. On shutdown: stops all adapters in reverse registration order
//  5. Waits for all adapter goroutines to complete
//
// Error handling:
//   - context cancelled: graceful shutdown, returns the context error
//   - adapter failure: all other adapters are stopped, returns the
//     failing adapter's error
//   - stop errors are joined onto either of the above
//
// A second call returns an error immediately instead of starting
// anything.
func (s *Server) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return errors.New("Serve() has already been called on this server instance")
	}

	adapters := s.registry.Adapters()
	if len(adapters) == 0 {
		return errors.New("no adapters registered; call Register() before Serve()")
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	// Buffered so late failures never block exiting goroutines.
	errChan := make(chan adapterError, len(adapters)+1)

	var wg sync.WaitGroup

	startTime := time.Now()
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter", protocol)

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				// Expected during shutdown.
				logger.Debug("%s adapter stopped during shutdown: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	if s.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.metricsServer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Metrics server failed: %v", err)
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	// Log successful startup after a brief delay to allow adapters to
	// initialize
	go func() {
		time.Sleep(100 * time.Millisecond)
		logger.Info("All adapters started in %v", time.Since(startTime))
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	stopErr := s.stopAll(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Server stopped")

	if stopErr != nil {
		return errors.Join(shutdownErr, stopErr)
	}
	return shutdownErr
}

// stopAll stops every adapter in reverse registration order, then the
// metrics listener, and aggregates the errors.
//
// Each Stop call blocks until that adapter has shut down or the shared
// budget expires; the adapters' Serve goroutines unblock as a result.
func (s *Server) stopAll(adapters []adapter.Adapter) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	var errs []error
	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter", protocol)

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
			errs = append(errs, fmt.Errorf("stop %s adapter: %w", protocol, err))
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Package webdav serves the archive tree over WebDAV.
//
// The adapter mounts a read-only filesystem bridge on
// golang.org/x/net/webdav for the DAV methods and serves GET and HEAD
// itself, streaming leaf content through ranged reads. Every write
// method is refused with a permission error.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/webdav"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// WebDAVConfig holds configuration parameters for the WebDAV server.
//
// Zero timeout values are replaced with defaults by New. Port 0 binds
// an OS-assigned port, which Port() reports once the listener is up.
type WebDAVConfig struct {
	// Enabled controls whether the WebDAV adapter is active.
	// When false, the WebDAV adapter will not be started.
	Enabled bool `mapstructure:"enabled"`

	// Host is the interface to bind. Empty binds all interfaces.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on. 0 binds an ephemeral port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Prefix is the URL prefix the tree is served under, for example
	// "/dandi". Empty serves the tree at the URL root.
	Prefix string `mapstructure:"prefix"`

	// ReadTimeout bounds reading a request including its body. DAV
	// request bodies are small, and uploads are refused regardless.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections with no request in
	// flight.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests to drain during graceful shutdown. After this timeout,
	// remaining connections are forcibly closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *WebDAVConfig) applyDefaults() {
	// Port 0 stays 0 on purpose: it requests an OS-assigned port. The
	// standard listening port is applied by the configuration layer.
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is valid.
func (c *WebDAVConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// WebDAVAdapter implements the adapter.Adapter interface for WebDAV.
//
// The adapter owns an http.Server whose handler answers GET and HEAD
// directly and delegates the remaining DAV methods to a
// golang.org/x/net/webdav handler over the read-only filesystem bridge.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. In-flight requests drain for up to ShutdownTimeout
//  4. Remaining connections are force-closed after the timeout
type WebDAVAdapter struct {
	config WebDAVConfig

	server  *http.Server
	metrics metrics.WebDAVMetrics

	// mu guards listener, which Serve sets after binding.
	mu       sync.Mutex
	listener net.Listener

	// shutdownOnce ensures the drain sequence runs exactly once.
	shutdownOnce sync.Once

	// done is closed when the drain sequence has completed.
	done chan struct{}
}

// New creates a WebDAVAdapter serving the given resolver.
//
// Zero values in config are replaced with defaults. A nil metrics
// recorder disables instrumentation.
//
// Panics if config validation fails.
func New(config WebDAVConfig, svc *vfs.Service, webdavMetrics metrics.WebDAVMetrics) *WebDAVAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid WebDAV config: %v", err))
	}
	if webdavMetrics == nil {
		webdavMetrics = noopWebDAVMetrics{}
	}

	prefix := normalizePrefix(config.Prefix)
	handler := &davHandler{
		svc:    svc,
		prefix: prefix,
		dav: &webdav.Handler{
			Prefix:     prefix,
			FileSystem: &davFS{svc: svc},
			LockSystem: webdav.NewMemLS(),
			Logger:     logOutcome,
		},
		metrics: webdavMetrics,
	}

	return &WebDAVAdapter{
		config:  config,
		metrics: webdavMetrics,
		server: &http.Server{
			Handler:     handler,
			ReadTimeout: config.ReadTimeout,
			IdleTimeout: config.IdleTimeout,
			// No WriteTimeout: a single GET may stream an arbitrarily
			// large object and must not be cut off mid-body.
		},
		done: make(chan struct{}),
	}
}

// noopWebDAVMetrics keeps the adapter free of nil checks when no
// recorder is wired.
type noopWebDAVMetrics struct{}

func (noopWebDAVMetrics) RecordRequest(method string, duration time.Duration, status int) {}
func (noopWebDAVMetrics) RecordRequestStart(method string)                                {}
func (noopWebDAVMetrics) RecordRequestEnd(method string)                                  {}
func (noopWebDAVMetrics) RecordBytesServed(bytes int64)                                   {}

// Serve starts the WebDAV server and blocks until the context is
// cancelled or the listener fails.
//
// Cancelling ctx initiates graceful shutdown: the listener closes,
// in-flight requests drain for up to ShutdownTimeout, then remaining
// connections are force-closed. Serve returns after the drain sequence
// has completed.
func (s *WebDAVAdapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create WebDAV listener on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.Info("WebDAV server listening on %s", listener.Addr())
	logger.Debug("WebDAV config: prefix=%q read_timeout=%v idle_timeout=%v",
		s.config.Prefix, s.config.ReadTimeout, s.config.IdleTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("WebDAV shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.done:
		}
	}()

	err = s.server.Serve(listener)
	// Serve always returns a non-nil error. ErrServerClosed marks a
	// shutdown; anything else is a listener failure.
	s.initiateShutdown()
	<-s.done
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("WebDAV server stopped")
		return nil
	}
	return fmt.Errorf("WebDAV server failed: %w", err)
}

// initiateShutdown starts the drain sequence exactly once. The caller
// is not blocked; waiters observe completion through the done channel.
func (s *WebDAVAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		go func() {
			defer close(s.done)
			// The serving context is already cancelled by the time the
			// drain runs, so the deadline needs a context of its own.
			drainCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(drainCtx); err != nil {
				logger.Warn("WebDAV drain exceeded %v: %v - force-closing connections",
					s.config.ShutdownTimeout, err)
				_ = s.server.Close()
			}
		}()
	})
}

// Stop initiates graceful shutdown and waits for the drain to finish.
//
// Safe to call multiple times and concurrently with Serve. A nil
// context waits without a deadline.
func (s *WebDAVAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()
	if ctx == nil {
		<-s.done
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Protocol returns "WebDAV" as the protocol identifier.
func (s *WebDAVAdapter) Protocol() string {
	return "WebDAV"
}

// Port returns the port the server is bound to. Before the listener is
// up this is the configured port, afterwards the actual one, which
// matters when the configured port is 0.
func (s *WebDAVAdapter) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// normalizePrefix canonicalizes the configured URL prefix to either ""
// or a "/"-led path without a trailing slash.
func normalizePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}

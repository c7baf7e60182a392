// Package fuse mounts the archive tree as a read-only FUSE filesystem.
//
// The adapter bridges resolver nodes to the kernel through
// github.com/hanwen/go-fuse/v2: collections become directories, leaves
// become regular files whose reads open ranged streams sized to the
// kernel request. The mount carries the "ro" option, so the kernel
// refuses writes before they reach the bridge.
package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// unmountRetryDelay spaces the unmount attempts while the mountpoint
// is busy.
const unmountRetryDelay = 100 * time.Millisecond

// FUSEConfig holds configuration parameters for the FUSE mount.
//
// Zero timeout values are replaced with defaults by New.
type FUSEConfig struct {
	// Enabled controls whether the FUSE adapter is active.
	// When false, the FUSE adapter will not be started.
	Enabled bool `mapstructure:"enabled"`

	// Mountpoint is the directory the filesystem is mounted on. It is
	// created if missing.
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `mapstructure:"allow_other"`

	// FSName is the filesystem source shown in mount tables.
	FSName string `mapstructure:"fsname"`

	// EntryTimeout is how long the kernel caches name lookups.
	EntryTimeout time.Duration `mapstructure:"entry_timeout" validate:"min=0"`

	// AttrTimeout is how long the kernel caches file attributes.
	AttrTimeout time.Duration `mapstructure:"attr_timeout" validate:"min=0"`

	// NegativeTimeout is how long the kernel caches failed lookups.
	NegativeTimeout time.Duration `mapstructure:"negative_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the unmount retries during graceful
	// shutdown. A mountpoint still busy after it is abandoned to the
	// operator.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FUSEConfig) applyDefaults() {
	if c.FSName == "" {
		c.FSName = "dandifs"
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = time.Second
	}
	if c.AttrTimeout == 0 {
		c.AttrTimeout = time.Second
	}
	if c.NegativeTimeout == 0 {
		c.NegativeTimeout = 100 * time.Millisecond
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is valid.
func (c *FUSEConfig) validate() error {
	if c.Mountpoint == "" {
		return fmt.Errorf("invalid Mountpoint: must not be empty")
	}
	if c.EntryTimeout < 0 {
		return fmt.Errorf("invalid EntryTimeout %v: must be >= 0", c.EntryTimeout)
	}
	if c.AttrTimeout < 0 {
		return fmt.Errorf("invalid AttrTimeout %v: must be >= 0", c.AttrTimeout)
	}
	if c.NegativeTimeout < 0 {
		return fmt.Errorf("invalid NegativeTimeout %v: must be >= 0", c.NegativeTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// FUSEAdapter implements the adapter.Adapter interface for FUSE.
//
// The adapter owns a kernel mount whose inode tree is built lazily from
// resolver nodes. Serve blocks in the kernel serve loop; shutdown
// unmounts the filesystem, which makes the loop exit.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Unmount requested, retried while the mountpoint is busy
//  3. The kernel serve loop exits once the unmount lands
//  4. A mountpoint still busy after ShutdownTimeout is abandoned
type FUSEAdapter struct {
	config FUSEConfig

	root    *dirNode
	metrics metrics.FUSEMetrics

	// mu guards server, stopping and exited. Serve sets server after
	// mounting; initiateShutdown sets stopping before reading server,
	// so a mount racing a stop is torn down by whichever side sees
	// both.
	mu       sync.Mutex
	server   *fuse.Server
	stopping bool
	exited   bool

	// shutdownOnce ensures the unmount sequence runs exactly once.
	shutdownOnce sync.Once

	// done is closed when the unmount sequence has completed.
	done chan struct{}

	// shutdownErr records an abandoned unmount for Stop to report.
	// Written before done closes.
	shutdownErr error
}

// New creates a FUSEAdapter serving the given resolver.
//
// Zero values in config are replaced with defaults. A nil metrics
// recorder disables instrumentation.
//
// Panics if config validation fails.
func New(config FUSEConfig, svc *vfs.Service, fuseMetrics metrics.FUSEMetrics) *FUSEAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FUSE config: %v", err))
	}
	if fuseMetrics == nil {
		fuseMetrics = noopFUSEMetrics{}
	}

	return &FUSEAdapter{
		config:  config,
		root:    &dirNode{bridge: &bridge{metrics: fuseMetrics}, node: svc.Root()},
		metrics: fuseMetrics,
		done:    make(chan struct{}),
	}
}

// noopFUSEMetrics keeps the adapter free of nil checks when no
// recorder is wired.
type noopFUSEMetrics struct{}

func (noopFUSEMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopFUSEMetrics) RecordBytesRead(bytes int64)                                         {}

// Serve mounts the filesystem and blocks until it is unmounted.
//
// Cancelling ctx initiates the unmount; Serve returns once the kernel
// serve loop has exited, which also covers an unmount performed
// externally by the operator.
func (s *FUSEAdapter) Serve(ctx context.Context) error {
	if err := os.MkdirAll(s.config.Mountpoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", s.config.Mountpoint, err)
	}

	entryTimeout := s.config.EntryTimeout
	attrTimeout := s.config.AttrTimeout
	negativeTimeout := s.config.NegativeTimeout

	server, err := gofuse.Mount(s.config.Mountpoint, s.root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     s.config.FSName,
			Name:       "dandifs",
			AllowOther: s.config.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mount FUSE filesystem at %s: %w", s.config.Mountpoint, err)
	}

	s.mu.Lock()
	s.server = server
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		// Stop ran before the mount was up; take it straight down.
		if err := server.Unmount(); err != nil {
			logger.Debug("FUSE unmount of %s: %v", s.config.Mountpoint, err)
		}
	}

	logger.Info("FUSE filesystem mounted at %s", s.config.Mountpoint)
	logger.Debug("FUSE config: fsname=%q allow_other=%v entry_timeout=%v attr_timeout=%v negative_timeout=%v",
		s.config.FSName, s.config.AllowOther, s.config.EntryTimeout, s.config.AttrTimeout, s.config.NegativeTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FUSE shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.done:
		}
	}()

	server.Wait()

	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()

	s.initiateShutdown()
	<-s.done
	logger.Info("FUSE server stopped")
	return nil
}

// initiateShutdown starts the unmount sequence exactly once. The caller
// is not blocked; waiters observe completion through the done channel.
func (s *FUSEAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		go func() {
			defer close(s.done)

			s.mu.Lock()
			s.stopping = true
			server := s.server
			s.mu.Unlock()
			if server == nil {
				// Not mounted yet; Serve observes stopping and tears
				// the mount down as soon as it is up.
				return
			}

			deadline := time.Now().Add(s.config.ShutdownTimeout)
			var err error
			for {
				if err = server.Unmount(); err == nil {
					logger.Info("FUSE filesystem unmounted from %s", s.config.Mountpoint)
					return
				}
				s.mu.Lock()
				exited := s.exited
				s.mu.Unlock()
				if exited {
					// The serve loop is already gone; the mount was
					// removed externally and there is nothing to undo.
					return
				}
				if time.Now().After(deadline) {
					break
				}
				logger.Debug("FUSE unmount of %s failed, retrying: %v", s.config.Mountpoint, err)
				time.Sleep(unmountRetryDelay)
			}
			logger.Warn("FUSE unmount of %s still failing after %v: %v - abandoning the mountpoint",
				s.config.Mountpoint, s.config.ShutdownTimeout, err)
			s.shutdownErr = fmt.Errorf("FUSE unmount of %s failed: %w", s.config.Mountpoint, err)
		}()
	})
}

// Stop initiates the unmount and waits for it to finish.
//
// Safe to call multiple times and concurrently with Serve. A nil
// context waits without a deadline. Returns the unmount error when the
// mountpoint had to be abandoned.
func (s *FUSEAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()
	if ctx == nil {
		<-s.done
		return s.shutdownErr
	}
	select {
	case <-s.done:
		return s.shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Protocol returns "FUSE" as the protocol identifier.
func (s *FUSEAdapter) Protocol() string {
	return "FUSE"
}

// Port returns 0: the adapter speaks to the kernel, not a socket.
func (s *FUSEAdapter) Port() int {
	return 0
}

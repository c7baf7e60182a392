package e2e

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/adapter/fuse"
	"github.com/marmos91/dandifs/pkg/adapter/webdav"
	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/marmos91/dandifs/pkg/objectstore"
	"github.com/marmos91/dandifs/pkg/server"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// TestConfig selects the serving layout a test runs under.
type TestConfig struct {
	Name string

	// Prefix is the URL prefix the WebDAV tree is served under. Empty
	// serves the tree at the URL root.
	Prefix string

	// FUSEMount additionally mounts the tree through the FUSE adapter.
	// Requires /dev/fuse; tests using it call fuseAvailable first.
	FUSEMount bool
}

// AllConfigurations returns the layouts every suite runs on. Prefix
// handling changes each href and route, so both layouts get the full
// browse suite.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "root", Prefix: ""},
		{Name: "prefixed", Prefix: "/dandi"},
	}
}

// TestContext provides a complete testing environment with:
// - A fake archive service seeded with a small dandiset tree
// - The real gateway clients wired into a resolver
// - A running server exposing the tree over WebDAV (and optionally FUSE)
// - Cleanup mechanisms
type TestContext struct {
	T          testing.TB
	Config     *TestConfig
	Archive    *archiveFixture
	Localstack *LocalstackHelper
	Bucket     string
	Resolver   *vfs.Service

	// BaseURL is the WebDAV endpoint including the configured prefix.
	BaseURL string
	Client  *http.Client

	// MountPath is the FUSE mountpoint, set only for FUSEMount configs.
	MountPath string

	adapter *webdav.WebDAVAdapter

	ctx    context.Context
	cancel context.CancelFunc

	serveErr    chan error
	stopOnce    sync.Once
	serveResult error

	tempDirs []string
}

// NewTestContext creates a new test environment with the specified
// configuration. It starts the fake archive, wires the real clients and
// serves the tree until Cleanup.
func NewTestContext(t testing.TB, config *TestConfig) *TestContext {
	t.Helper()

	// Always use ERROR level to keep test output clean.
	logger.SetLevel("ERROR")

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:        t,
		Config:   config,
		ctx:      ctx,
		cancel:   cancel,
		serveErr: make(chan error, 1),
		Client:   &http.Client{Timeout: 10 * time.Second},
	}

	tc.Localstack = NewLocalstackHelper(t)
	tc.Bucket = fmt.Sprintf("dandifs-e2e-%s-%d", config.Name, os.Getpid())
	tc.Archive = newArchiveFixture(t)

	tc.setupResolver()
	tc.startServer()

	return tc
}

// setupResolver builds the resolver over the real gateway clients: the
// archive client pointed at the fixture, the object store pointed at
// Localstack. Neither construction touches the network.
func (tc *TestContext) setupResolver() {
	tc.T.Helper()

	archive, err := dandiapi.New(dandiapi.Config{
		APIURL:          tc.Archive.URL(),
		ZarrBucket:      tc.Bucket,
		RetryMaxElapsed: 5 * time.Second,
	}, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create archive client: %v", err)
	}

	store, err := objectstore.New(tc.ctx, objectstore.Config{
		Region:          "us-east-1",
		Endpoint:        tc.Localstack.Endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create object store: %v", err)
	}

	tc.Resolver = vfs.New(archive, store)
}

// startServer registers the adapters and runs the server in the
// background until the WebDAV listener answers.
func (tc *TestContext) startServer() {
	tc.T.Helper()

	tc.adapter = webdav.New(webdav.WebDAVConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Prefix:          tc.Config.Prefix,
		ShutdownTimeout: 5 * time.Second,
	}, tc.Resolver, nil)

	registry := server.NewRegistry()
	if err := registry.Register(tc.adapter); err != nil {
		tc.T.Fatalf("Failed to register WebDAV adapter: %v", err)
	}

	if tc.Config.FUSEMount {
		tc.MountPath = filepath.Join(tc.CreateTempDir("dandifs-e2e-mount-*"), "mount")
		fuseAdapter := fuse.New(fuse.FUSEConfig{
			Mountpoint:      tc.MountPath,
			ShutdownTimeout: 5 * time.Second,
		}, tc.Resolver, nil)
		if err := registry.Register(fuseAdapter); err != nil {
			tc.T.Fatalf("Failed to register FUSE adapter: %v", err)
		}
	}

	srv := server.New(registry, nil)
	go func() {
		tc.serveErr <- srv.Serve(tc.ctx)
	}()

	tc.waitForServer()
	tc.BaseURL = fmt.Sprintf("http://127.0.0.1:%d%s", tc.adapter.Port(), tc.Config.Prefix)
	if tc.Config.FUSEMount {
		tc.waitForMount()
	}
}

// waitForServer waits for the WebDAV listener to accept connections.
// The adapter binds an ephemeral port, so the port is polled too.
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case <-ticker.C:
			port := tc.adapter.Port()
			if port == 0 {
				continue
			}
			conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
			if err == nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// waitForMount polls until the tree is visible through the mountpoint.
func (tc *TestContext) waitForMount() {
	tc.T.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(tc.MountPath)
		if err == nil && len(entries) > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	tc.T.Fatal("Timeout waiting for FUSE mount to become visible")
}

// Shutdown cancels the serving context and waits for the server to
// finish. Safe to call more than once; later calls return the first
// result.
func (tc *TestContext) Shutdown() error {
	tc.stopOnce.Do(func() {
		tc.cancel()
		select {
		case tc.serveResult = <-tc.serveErr:
		case <-time.After(30 * time.Second):
			tc.serveResult = errors.New("server did not stop after context cancellation")
		}
	})
	return tc.serveResult
}

// Cleanup stops the server and removes everything the test created.
func (tc *TestContext) Cleanup() {
	if err := tc.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
		tc.T.Errorf("Server error: %v", err)
	}

	tc.Archive.Close()
	tc.Localstack.Cleanup()

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// URL joins a tree path onto the WebDAV endpoint. The path starts with
// "/" and names a node of the archive tree.
func (tc *TestContext) URL(treePath string) string {
	return tc.BaseURL + treePath
}

// CreateTempDir creates a temporary directory and registers it for
// cleanup.
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// runOnAllConfigs runs a test on all serving layouts.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// newDefaultContext starts the root layout for tests whose behavior does
// not depend on the URL prefix.
func newDefaultContext(t testing.TB) *TestContext {
	t.Helper()
	return NewTestContext(t, AllConfigurations()[0])
}

// fuseAvailable checks whether /dev/fuse is accessible. Tests that need
// a real mount call this and skip if the device is absent.
func fuseAvailable(t testing.TB) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

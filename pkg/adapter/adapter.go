// Package adapter defines the contract between the server core and the
// protocol front-ends that expose the archive tree.
//
// An adapter owns one protocol surface (WebDAV over HTTP, a FUSE mount)
// and translates protocol requests into resolver operations. Adapters
// receive their resolver and configuration at construction; the server
// only drives their lifecycle.
package adapter

import "context"

// Adapter is a protocol front-end managed by the server.
//
// Lifecycle:
//  1. Construction with config and resolver (protocol package New).
//  2. Registration with the server.
//  3. Serve(ctx) runs the protocol loop until shutdown.
//  4. Stop(ctx) triggers shutdown from outside the Serve goroutine.
//
// Implementations must be safe for Stop to be called concurrently with
// Serve and more than once.
type Adapter interface {
	// Serve runs the adapter until ctx is cancelled or an
	// unrecoverable error occurs. It blocks for the adapter's whole
	// lifetime; the server runs each adapter in its own goroutine.
	//
	// Cancelling ctx initiates graceful shutdown: stop accepting new
	// work, let in-flight requests drain, then return. A clean
	// shutdown returns nil or context.Canceled; anything else is
	// treated as fatal by the server and brings the process down.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for it to complete
	// or for ctx to expire. Safe to call multiple times and while
	// Serve is still running.
	Stop(ctx context.Context) error

	// Protocol returns the adapter's protocol name ("WebDAV", "FUSE").
	// Protocol names identify adapters in logs and in the server
	// registry, where they must be unique.
	Protocol() string

	// Port returns the TCP port the adapter listens on, or 0 for
	// adapters without a listening socket (FUSE mounts). After Serve
	// has bound a listener this reports the actual port, which
	// matters when the configured port is 0.
	Port() int
}

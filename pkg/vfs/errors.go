package vfs

import "errors"

// Error represents a domain error from resolver operations.
//
// These are archive-level outcomes (path does not exist, upstream service
// unavailable, etc.) as opposed to programming errors. Absence of a resource
// is an expected, frequent outcome and is always reported through this type
// rather than through panics or sentinel strings.
//
// Adapters translate Error codes to protocol-specific responses
// (e.g., HTTP 404 for WebDAV, ENOENT for FUSE).
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the archive path related to the error (if applicable)
	Path string

	// Err is the underlying cause, if any (transport errors, decode
	// failures). Nil for plain not-found outcomes.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a resolver error.
type ErrorCode int

const (
	// ErrNotFound indicates the path names nothing in the archive.
	// This is a definitive answer, not a failure.
	ErrNotFound ErrorCode = iota

	// ErrMalformed indicates a path segment can never name a resource at
	// its level (e.g. a non-numeric dandiset identifier). Decided locally,
	// before any remote call. Consumers treat it exactly like ErrNotFound.
	ErrMalformed

	// ErrUpstream indicates the archive service or object store failed or
	// returned something undecodable. The existence question is unanswered.
	ErrUpstream
)

// NewNotFound returns a not-found error for the given archive path.
func NewNotFound(path string) *Error {
	return &Error{Code: ErrNotFound, Message: "resource does not exist", Path: path}
}

// NewMalformed returns an error for a name that fails local validation.
func NewMalformed(path, reason string) *Error {
	return &Error{Code: ErrMalformed, Message: reason, Path: path}
}

// NewUpstream wraps a failure from the archive service or object store.
func NewUpstream(path string, err error) *Error {
	return &Error{Code: ErrUpstream, Message: "upstream request failed", Path: path, Err: err}
}

// IsNotFound reports whether err marks a definitively absent resource.
// Malformed names count too: they can never resolve, so consumers handle
// them exactly like a missing entry.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrNotFound || e.Code == ErrMalformed
	}
	return false
}

// IsUpstream reports whether err was caused by an archive service or
// object store failure rather than by resource absence.
func IsUpstream(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrUpstream
	}
	return false
}

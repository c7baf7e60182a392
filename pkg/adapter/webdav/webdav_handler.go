package webdav

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// davHandler is the HTTP entry point of the adapter.
//
// GET and HEAD are answered directly: the stock webdav handler flattens
// every open failure to 404 and leaves content types to sniffing, while
// answering here keeps the not-found/upstream distinction and sets the
// type and etag from the node already resolved. All other methods are
// delegated to the webdav handler over the filesystem bridge.
type davHandler struct {
	svc     *vfs.Service
	dav     *webdav.Handler
	prefix  string
	metrics metrics.WebDAVMetrics
}

func (h *davHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.metrics.RecordRequestStart(r.Method)
	defer h.metrics.RecordRequestEnd(r.Method)

	rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.serveContent(rec, r)
	default:
		h.dav.ServeHTTP(rec, r)
	}

	h.metrics.RecordRequest(r.Method, time.Since(start), rec.status)
	if rec.bytes > 0 {
		h.metrics.RecordBytesServed(rec.bytes)
	}
}

// serveContent streams one leaf. Range handling, conditional requests
// and HEAD semantics all come from http.ServeContent over the lazy file
// handle.
func (h *davHandler) serveContent(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stripPrefix(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	node, err := h.svc.Resolve(ctx, path.Clean("/"+name))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if node.IsCollection() {
		// Collections have no GET representation, matching the stock
		// webdav handler.
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	attrs, err := node.Attrs(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	etag, err := node.ETag(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", `"`+etag+`"`)
	}
	w.Header().Set("Content-Type", attrs.ContentType)

	f := &file{ctx: ctx, node: node, info: &fileInfo{
		name:        node.Name(),
		size:        attrs.Size,
		mode:        0444,
		modTime:     attrs.Modified,
		contentType: attrs.ContentType,
		node:        node,
	}}
	defer f.Close()

	http.ServeContent(w, r, node.Name(), attrs.Modified, f)
}

// fail answers a request that could not reach its node. Absence is a
// routine outcome logged at debug level; upstream failures surface as
// bad gateway.
func (h *davHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case r.Context().Err() != nil:
		// The client is gone; there is nobody left to answer.
	case vfs.IsNotFound(err):
		logger.Debug("WebDAV %s %s: not found", r.Method, r.URL.Path)
		http.NotFound(w, r)
	default:
		logger.Error("WebDAV %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
}

// stripPrefix removes the configured URL prefix, mirroring the webdav
// handler so both entry paths agree on the served namespace.
func (h *davHandler) stripPrefix(p string) (string, bool) {
	if h.prefix == "" {
		return p, true
	}
	r := strings.TrimPrefix(p, h.prefix)
	if len(r) == len(p) {
		return "", false
	}
	if r == "" {
		r = "/"
	}
	return r, true
}

// logOutcome receives the outcome of every delegated DAV request.
// Absence and refused writes are routine client probing; anything else
// is an operational signal.
func logOutcome(r *http.Request, err error) {
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("WebDAV %s %s: not found", r.Method, r.URL.Path)
	case errors.Is(err, os.ErrPermission):
		logger.Debug("WebDAV %s %s: write refused", r.Method, r.URL.Path)
	default:
		logger.Error("WebDAV %s %s: %v", r.Method, r.URL.Path, err)
	}
}

// responseRecorder captures the status code and body bytes written, for
// request metrics.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

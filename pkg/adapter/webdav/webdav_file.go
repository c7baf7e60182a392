package webdav

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/net/webdav"

	"github.com/marmos91/dandifs/pkg/vfs"
)

var (
	errIsDirectory  = errors.New("is a directory")
	errNotDirectory = errors.New("not a directory")
)

// file is a read-only handle over one resolved node, serving both
// directory listings and ranged content reads.
//
// Content is streamed lazily. Seek only moves the position; Read opens
// a ranged stream at the current position on demand and keeps it across
// sequential reads, dropping it when the position jumps. A full
// download and an HTTP range request each cost one remote open.
type file struct {
	// ctx is the context of the request that opened the handle. The
	// webdav File methods carry no context of their own, and a handle
	// never outlives its request.
	ctx context.Context

	node *vfs.Node
	info *fileInfo

	pos int64
	rc  io.ReadCloser

	children  []os.FileInfo
	dirOffset int
}

var _ webdav.File = (*file)(nil)

func (f *file) Stat() (os.FileInfo, error) {
	return f.info, nil
}

func (f *file) Read(p []byte) (int, error) {
	if f.info.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.node.Path(), Err: errIsDirectory}
	}
	if f.pos >= f.info.size {
		return 0, io.EOF
	}
	if f.rc == nil {
		rc, err := f.node.OpenRange(f.ctx, f.pos, -1)
		if err != nil {
			return 0, translate("read", f.node.Path(), err)
		}
		f.rc = rc
	}
	n, err := f.rc.Read(p)
	f.pos += int64(n)
	return n, err
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = f.info.size + offset
	default:
		return 0, &os.PathError{Op: "seek", Path: f.node.Path(), Err: os.ErrInvalid}
	}
	if pos < 0 {
		return 0, &os.PathError{Op: "seek", Path: f.node.Path(), Err: os.ErrInvalid}
	}
	if pos != f.pos {
		if err := f.closeStream(); err != nil {
			return 0, err
		}
		f.pos = pos
	}
	return pos, nil
}

// Readdir enumerates the collection once and hands out entries from the
// cached listing, following the os.File contract for the count
// argument.
func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if !f.node.IsCollection() {
		return nil, &os.PathError{Op: "readdir", Path: f.node.Path(), Err: errNotDirectory}
	}
	if f.children == nil {
		entries, err := f.node.Children(f.ctx)
		if err != nil {
			return nil, translate("readdir", f.node.Path(), err)
		}
		infos := make([]os.FileInfo, 0, len(entries))
		for _, entry := range entries {
			info, err := statNode(f.ctx, entry.Node, entry.Name)
			if err != nil {
				return nil, translate("readdir", f.node.Path(), err)
			}
			infos = append(infos, info)
		}
		f.children = infos
	}
	if count <= 0 {
		rest := f.children[f.dirOffset:]
		f.dirOffset = len(f.children)
		return rest, nil
	}
	if f.dirOffset >= len(f.children) {
		return nil, io.EOF
	}
	end := f.dirOffset + count
	if end > len(f.children) {
		end = len(f.children)
	}
	batch := f.children[f.dirOffset:end]
	f.dirOffset = end
	return batch, nil
}

func (f *file) Write(p []byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.node.Path(), Err: os.ErrPermission}
}

func (f *file) Close() error {
	return f.closeStream()
}

func (f *file) closeStream() error {
	if f.rc == nil {
		return nil
	}
	err := f.rc.Close()
	f.rc = nil
	return err
}

// fileInfo carries the materialized attributes of one node.
//
// Leaf infos keep their node so the optional webdav property interfaces
// can answer without re-resolving the path.
type fileInfo struct {
	name        string
	size        int64
	mode        os.FileMode
	modTime     time.Time
	contentType string

	// node backs ContentType and ETag lookups. Nil for collections.
	node *vfs.Node
}

var (
	_ os.FileInfo         = (*fileInfo)(nil)
	_ webdav.ContentTyper = (*fileInfo)(nil)
	_ webdav.ETager       = (*fileInfo)(nil)
)

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return nil }

// ContentType reports the leaf's MIME type from its materialized
// attributes. Without this the webdav handler would open every listed
// file and sniff its first bytes to answer PROPFIND, costing one remote
// read per entry.
func (fi *fileInfo) ContentType(ctx context.Context) (string, error) {
	if fi.node == nil || fi.contentType == "" {
		return "", webdav.ErrNotImplemented
	}
	return fi.contentType, nil
}

// ETag reports the leaf's content identity token as a quoted strong
// etag. Leaves without a token fall back to the handler's default
// modtime-and-size etag.
func (fi *fileInfo) ETag(ctx context.Context) (string, error) {
	if fi.node == nil {
		return "", webdav.ErrNotImplemented
	}
	etag, err := fi.node.ETag(ctx)
	if err != nil {
		return "", err
	}
	if etag == "" {
		return "", webdav.ErrNotImplemented
	}
	return `"` + etag + `"`, nil
}

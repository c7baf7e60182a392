package fuse

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/metrics"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// bridge carries what every inode in the mount shares.
type bridge struct {
	metrics metrics.FUSEMetrics
}

// record reports one completed kernel operation.
func (b *bridge) record(op string, start time.Time, errno syscall.Errno) {
	// An Errno of 0 must become a nil error, not a non-nil interface
	// holding zero.
	var err error
	if errno != 0 {
		err = errno
	}
	b.metrics.RecordOperation(op, time.Since(start), err)
}

// fail translates a resolver error for the kernel and logs it. Missing
// entries stay at debug level; upstream failures are the operator's
// problem and log as errors.
func (b *bridge) fail(op, path string, err error) syscall.Errno {
	errno := translate(err)
	switch errno {
	case syscall.ENOENT:
		logger.Debug("FUSE %s %s: not found", op, path)
	case syscall.EINTR:
	default:
		logger.Error("FUSE %s %s failed: %v", op, path, err)
	}
	return errno
}

// translate maps resolver errors to kernel errnos. Malformed names
// count as missing, the same answer the resolver gives its other
// consumers.
func translate(err error) syscall.Errno {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	case vfs.IsNotFound(err):
		return syscall.ENOENT
	default:
		return syscall.EIO
	}
}

// inodeNumber derives a stable inode number from a node's tree path.
// Directories hash with a trailing separator so a chunk object and a
// folder sharing a name keep distinct numbers.
func inodeNumber(path string, dir bool) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	if dir {
		h.Write([]byte{'/'})
	}
	return h.Sum64()
}

// setTimes fills the attribute times where the node knows them.
func setTimes(attr *fuse.Attr, modified time.Time) {
	if modified.IsZero() {
		return
	}
	attr.SetTimes(nil, &modified, &modified)
}

// dirNode exposes a resolver collection as a kernel directory.
//
// Directories hold no state beyond the resolved node: every kernel
// operation resolves children or listings on demand, and the kernel's
// entry cache decides how long the answers live.
type dirNode struct {
	gofuse.Inode
	bridge *bridge
	node   *vfs.Node
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	start := time.Now()
	child, err := d.node.Child(ctx, name)
	if err != nil {
		errno := d.bridge.fail("LOOKUP", d.node.Path()+"/"+name, err)
		d.bridge.record("LOOKUP", start, errno)
		return nil, errno
	}

	var inode *gofuse.Inode
	if child.IsCollection() {
		inode = d.NewInode(ctx, &dirNode{bridge: d.bridge, node: child}, gofuse.StableAttr{
			Mode: syscall.S_IFDIR,
			Ino:  inodeNumber(child.Path(), true),
		})
		out.Mode = syscall.S_IFDIR | 0o555
		setTimes(&out.Attr, child.Modified())
	} else {
		file := &fileNode{bridge: d.bridge, node: child}
		// The kernel caches the size from the lookup answer and clamps
		// reads to it, so leaf attributes materialize here.
		attrs, err := file.ensureAttrs(ctx)
		if err != nil {
			errno := d.bridge.fail("LOOKUP", child.Path(), err)
			d.bridge.record("LOOKUP", start, errno)
			return nil, errno
		}
		inode = d.NewInode(ctx, file, gofuse.StableAttr{
			Mode: syscall.S_IFREG,
			Ino:  inodeNumber(child.Path(), false),
		})
		out.Mode = syscall.S_IFREG | 0o444
		out.Size = uint64(attrs.Size)
		setTimes(&out.Attr, attrs.Modified)
	}

	d.bridge.record("LOOKUP", start, 0)
	return inode, 0
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	start := time.Now()
	children, err := d.node.Children(ctx)
	if err != nil {
		errno := d.bridge.fail("READDIR", d.node.Path(), err)
		d.bridge.record("READDIR", start, errno)
		return nil, errno
	}

	entries := make([]fuse.DirEntry, 0, len(children))
	for _, child := range children {
		mode := uint32(syscall.S_IFREG)
		dir := child.Node.IsCollection()
		if dir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{
			Name: child.Name,
			Mode: mode,
			Ino:  inodeNumber(child.Node.Path(), dir),
		})
	}

	d.bridge.record("READDIR", start, 0)
	return &sliceDirStream{entries: entries}, 0
}

func (d *dirNode) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	start := time.Now()
	out.Mode = syscall.S_IFDIR | 0o555
	setTimes(&out.Attr, d.node.Modified())
	d.bridge.record("GETATTR", start, 0)
	return 0
}

// fileNode exposes a resolver leaf as a regular file.
//
// Attributes materialize once per inode. Content is read through
// ranged opens sized to each kernel request, so no stream outlives a
// single READ and nothing is buffered between requests.
type fileNode struct {
	gofuse.Inode
	bridge *bridge
	node   *vfs.Node

	// mu protects attrs (lazy materialization).
	mu    sync.Mutex
	attrs *vfs.Attrs
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (f *fileNode) ensureAttrs(ctx context.Context) (*vfs.Attrs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrs == nil {
		attrs, err := f.node.Attrs(ctx)
		if err != nil {
			return nil, err
		}
		f.attrs = attrs
	}
	return f.attrs, nil
}

func (f *fileNode) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	start := time.Now()
	attrs, err := f.ensureAttrs(ctx)
	if err != nil {
		errno := f.bridge.fail("GETATTR", f.node.Path(), err)
		f.bridge.record("GETATTR", start, errno)
		return errno
	}

	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(attrs.Size)
	out.Blocks = (out.Size + 511) / 512
	setTimes(&out.Attr, attrs.Modified)
	f.bridge.record("GETATTR", start, 0)
	return 0
}

// Open validates access and hands back a stateless handle. The ranged
// stream is opened per READ, so OPEN itself does no remote work.
func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	start := time.Now()
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		f.bridge.record("OPEN", start, syscall.EROFS)
		return nil, 0, syscall.EROFS
	}

	// Blob and chunk bytes are stable enough for the kernel page cache
	// to survive across opens. The metadata document regenerates per
	// read and must be fetched fresh each time.
	var fuseFlags uint32
	if f.node.Kind() != vfs.KindMetadataDocument {
		fuseFlags = fuse.FOPEN_KEEP_CACHE
	}

	f.bridge.record("OPEN", start, 0)
	return nil, fuseFlags, 0
}

func (f *fileNode) Read(ctx context.Context, _ gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	attrs, err := f.ensureAttrs(ctx)
	if err != nil {
		errno := f.bridge.fail("READ", f.node.Path(), err)
		f.bridge.record("READ", start, errno)
		return nil, errno
	}
	if off >= attrs.Size {
		f.bridge.record("READ", start, 0)
		return fuse.ReadResultData(nil), 0
	}

	length := int64(len(dest))
	if remaining := attrs.Size - off; length > remaining {
		length = remaining
	}

	rc, err := f.node.OpenRange(ctx, off, length)
	if err != nil {
		errno := f.bridge.fail("READ", f.node.Path(), err)
		f.bridge.record("READ", start, errno)
		return nil, errno
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, dest[:length])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		errno := f.bridge.fail("READ", f.node.Path(), err)
		f.bridge.record("READ", start, errno)
		return nil, errno
	}

	f.bridge.metrics.RecordBytesRead(int64(n))
	f.bridge.record("READ", start, 0)
	return fuse.ReadResultData(dest[:n]), 0
}

// sliceDirStream serves a directory listing the resolver produced in
// full. Listings drain their pages before the stream is built, so no
// cursor into the backing service is held open.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}

package webdav

import (
	"context"
	"os"
	"path"

	"golang.org/x/net/webdav"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// davFS bridges the archive resolver to webdav.FileSystem. The tree is
// read-only: every mutating method answers with a permission error, and
// reads resolve paths on demand without any local state.
type davFS struct {
	svc *vfs.Service
}

var _ webdav.FileSystem = (*davFS)(nil)

func (d *davFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrPermission}
}

func (d *davFS) RemoveAll(ctx context.Context, name string) error {
	return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
}

func (d *davFS) Rename(ctx context.Context, oldName, newName string) error {
	return &os.LinkError{Op: "rename", Old: oldName, New: newName, Err: os.ErrPermission}
}

// OpenFile opens name for reading. Write access of any kind is refused
// before the path is even resolved.
func (d *davFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC|os.O_EXCL) != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	node, err := d.resolve(ctx, "open", name)
	if err != nil {
		return nil, err
	}
	info, err := statNode(ctx, node, node.Name())
	if err != nil {
		return nil, translate("open", name, err)
	}
	return &file{ctx: ctx, node: node, info: info}, nil
}

func (d *davFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	node, err := d.resolve(ctx, "stat", name)
	if err != nil {
		return nil, err
	}
	info, err := statNode(ctx, node, node.Name())
	if err != nil {
		return nil, translate("stat", name, err)
	}
	return info, nil
}

func (d *davFS) resolve(ctx context.Context, op, name string) (*vfs.Node, error) {
	node, err := d.svc.Resolve(ctx, path.Clean("/"+name))
	if err != nil {
		return nil, translate(op, name, err)
	}
	return node, nil
}

// statNode materializes one node as a FileInfo. Collections become 0555
// directories; leaves become 0444 files sized from their attributes.
func statNode(ctx context.Context, node *vfs.Node, name string) (*fileInfo, error) {
	if node.IsCollection() {
		return &fileInfo{
			name:    name,
			mode:    os.ModeDir | 0555,
			modTime: node.Modified(),
		}, nil
	}
	attrs, err := node.Attrs(ctx)
	if err != nil {
		return nil, err
	}
	return &fileInfo{
		name:        name,
		size:        attrs.Size,
		mode:        0444,
		modTime:     attrs.Modified,
		contentType: attrs.ContentType,
		node:        node,
	}, nil
}

// translate maps resolver errors onto the os error vocabulary the
// webdav handler inspects. Definitive absence becomes os.ErrNotExist,
// which the handler turns into 404; everything else stays a server-side
// failure.
func translate(op, name string, err error) error {
	if vfs.IsNotFound(err) {
		return &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

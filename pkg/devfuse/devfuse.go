// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package devfuse serves the character devices registered in a
// vfs.VirtualFilesystem through a FUSE mount, so that host processes can
// open(2), read(2) and write(2) them.
//
// Each device appears as a regular file at its registered pathname. Every
// FUSE open creates a new vfs.FileDescription and every FUSE release drops
// it, so one host file descriptor corresponds to one device session. Files
// are opened with direct I/O and without a file position.
package devfuse

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/log"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

// Options configures a mount.
type Options struct {
	// FsName is the source shown in /proc/mounts. If empty, "mychardev" is
	// used.
	FsName string

	// Debug enables go-fuse request tracing.
	Debug bool

	// AllowOther lets users other than the mounting user access the mount.
	AllowOther bool

	// Logger receives open and release events. If nil, the global logger is
	// used.
	Logger log.Logger
}

// Mount exposes the character devices registered in vfsObj at dir. The
// directory tree is built once, when the mount is established. The caller
// must call Unmount on the returned server.
func Mount(dir string, vfsObj *vfs.VirtualFilesystem, opts Options) (*fuse.Server, error) {
	if opts.FsName == "" {
		opts.FsName = "mychardev"
	}
	// Nothing under the mount is cacheable: device contents change on
	// every write and the tree is owned by the registry.
	var noCache time.Duration
	server, err := fs.Mount(dir, NewRoot(vfsObj, opts.Logger), &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     opts.FsName,
			Name:       "devfuse",
			Debug:      opts.Debug,
			AllowOther: opts.AllowOther,
		},
		EntryTimeout:    &noCache,
		AttrTimeout:     &noCache,
		NegativeTimeout: &noCache,
	})
	if err != nil {
		return nil, fmt.Errorf("mounting devices at %q: %w", dir, err)
	}
	return server, nil
}

// Root is the root directory of the mount.
type Root struct {
	fs.Inode

	vfsObj *vfs.VirtualFilesystem
	logger log.Logger
}

var _ = (fs.NodeOnAdder)((*Root)(nil))

// NewRoot returns the root node for vfsObj's devices.
func NewRoot(vfsObj *vfs.VirtualFilesystem, logger log.Logger) *Root {
	if logger == nil {
		logger = log.Log()
	}
	return &Root{vfsObj: vfsObj, logger: logger}
}

// OnAdd implements fs.NodeOnAdder.OnAdd.
func (r *Root) OnAdd(ctx context.Context) {
	if err := r.vfsObj.ForEachDevice(func(pathname string, kind vfs.DeviceKind, major, minor uint32, perms uint16) error {
		if kind != vfs.CharDevice || pathname == "" {
			return nil
		}
		r.addDevice(ctx, pathname, &deviceNode{
			vfsObj: r.vfsObj,
			logger: r.logger,
			major:  major,
			minor:  minor,
			perms:  perms,
		})
		return nil
	}); err != nil {
		r.logger.Warningf("devfuse: listing devices: %v", err)
	}
}

// addDevice links node at pathname, creating intermediate directories.
func (r *Root) addDevice(ctx context.Context, pathname string, node *deviceNode) {
	parent := r.EmbeddedInode()
	parts := strings.Split(strings.Trim(pathname, "/"), "/")
	for _, dir := range parts[:len(parts)-1] {
		child := parent.GetChild(dir)
		if child == nil {
			child = parent.NewPersistentInode(ctx, &fs.Inode{}, fs.StableAttr{Mode: syscall.S_IFDIR})
			parent.AddChild(dir, child, false)
		}
		parent = child
	}
	name := parts[len(parts)-1]
	ch := parent.NewPersistentInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG})
	if !parent.AddChild(name, ch, false) {
		r.logger.Warningf("devfuse: %q already exists, skipping device %d:%d", pathname, node.major, node.minor)
		return
	}
	r.logger.Debugf("devfuse: exposing device %d:%d at %q", node.major, node.minor, pathname)
}

// deviceNode is the file for one registered character device.
type deviceNode struct {
	fs.Inode

	vfsObj *vfs.VirtualFilesystem
	logger log.Logger
	major  uint32
	minor  uint32
	perms  uint16
}

var _ = (fs.NodeOpener)((*deviceNode)(nil))
var _ = (fs.NodeGetattrer)((*deviceNode)(nil))
var _ = (fs.NodeSetattrer)((*deviceNode)(nil))

// Open implements fs.NodeOpener.Open.
func (n *deviceNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := n.vfsObj.OpenDeviceSpecialFile(ctx, vfs.CharDevice, n.major, n.minor, vfs.OpenOptions{Flags: flags})
	if err != nil {
		n.logger.Debugf("devfuse: open of device %d:%d failed: %v", n.major, n.minor, err)
		return nil, 0, toErrno(err)
	}
	return newHandle(fd), fuse.FOPEN_DIRECT_IO | fuse.FOPEN_NONSEEKABLE, fs.OK
}

// Getattr implements fs.NodeGetattrer.Getattr.
func (n *deviceNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fillAttr(out)
	return fs.OK
}

// Setattr implements fs.NodeSetattrer.Setattr. The device has no size, so
// truncation (as done by O_TRUNC opens) is accepted and ignored.
func (n *deviceNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if _, ok := in.GetMode(); ok {
		return syscall.EPERM
	}
	n.fillAttr(out)
	return fs.OK
}

func (n *deviceNode) fillAttr(out *fuse.AttrOut) {
	out.Mode = syscall.S_IFREG | uint32(n.perms)
	out.Nlink = 1
	out.Size = 0
	out.Rdev = linux.MakeDeviceID(n.major, n.minor)
	out.Blksize = 4096
}

func toErrno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	return linuxerr.ToUnix(err)
}

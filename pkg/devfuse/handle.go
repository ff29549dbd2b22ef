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

package devfuse

import (
	"context"
	"io"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
	"github.com/mychardev/mychardev/pkg/usermem"
)

// handle is an open device file. It holds the only reference on its
// FileDescription.
type handle struct {
	// mu serializes operations on the session, which the device requires.
	mu sync.Mutex
	fd *vfs.FileDescription
}

var _ = (fs.FileHandle)((*handle)(nil))
var _ = (fs.FileReader)((*handle)(nil))
var _ = (fs.FileWriter)((*handle)(nil))
var _ = (fs.FileFlusher)((*handle)(nil))
var _ = (fs.FileReleaser)((*handle)(nil))

func newHandle(fd *vfs.FileDescription) *handle {
	return &handle{fd: fd}
}

// Read implements fs.FileReader.Read. The offset is ignored.
func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd == nil {
		return nil, syscall.EBADF
	}
	n, err := h.fd.Read(ctx, usermem.BytesIOSequence(dest), vfs.ReadOptions{})
	if err == io.EOF {
		return fuse.ReadResultData(nil), fs.OK
	}
	if err != nil {
		return nil, toErrno(err)
	}
	// The device may report more bytes than fit in dest; a FUSE reply cannot
	// carry more than was requested.
	if n > int64(len(dest)) {
		n = int64(len(dest))
	}
	return fuse.ReadResultData(dest[:n]), fs.OK
}

// Write implements fs.FileWriter.Write. The offset is ignored.
func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd == nil {
		return 0, syscall.EBADF
	}
	n, err := h.fd.Write(ctx, usermem.BytesIOSequence(data), vfs.WriteOptions{})
	if err != nil {
		return 0, toErrno(err)
	}
	return uint32(n), fs.OK
}

// Flush implements fs.FileFlusher.Flush.
func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return fs.OK
}

// Release implements fs.FileReleaser.Release.
func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd == nil {
		return syscall.EBADF
	}
	h.fd.DecRef(ctx)
	h.fd = nil
	return fs.OK
}

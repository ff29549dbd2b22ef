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

package chardev

import (
	"context"

	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
	"github.com/mychardev/mychardev/pkg/usermem"
)

// SessionID identifies a session in its Module.
type SessionID uint64

// sessionContext is the state private to one open file.
type sessionContext struct {
	buf [BufferSize]byte

	// size is the number of meaningful bytes in buf. 0 <= size <= BufferSize.
	size int
}

func (m *Module) openSession(ctx context.Context, opts vfs.OpenOptions) (*vfs.FileDescription, error) {
	sc, err := m.alloc.Alloc()
	if err != nil {
		m.logger.Alertf("%s: memory not allocated: %v", m.name, err)
		return nil, linuxerr.ENOMEM
	}
	id := SessionID(m.lastID.Add(1))
	fd := &sessionFD{m: m, id: id}
	if err := fd.vfsfd.Init(fd, opts.Flags, &vfs.FileDescriptionOptions{
		DenyPRead:  true,
		DenyPWrite: true,
	}); err != nil {
		m.alloc.Free(sc)
		return nil, err
	}

	m.sessionsMu.Lock()
	m.sessions[id] = sc
	m.sessionsMu.Unlock()

	m.logger.Infof("%s: Device opened", m.name)
	return &fd.vfsfd, nil
}

// lookup returns the context of session id, or nil if it has been released.
func (m *Module) lookup(id SessionID) *sessionContext {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	return m.sessions[id]
}

func (m *Module) releaseSession(id SessionID) {
	m.sessionsMu.Lock()
	sc, ok := m.sessions[id]
	delete(m.sessions, id)
	m.sessionsMu.Unlock()

	if !ok {
		m.logger.Warningf("%s: release of session %d, which holds no context", m.name, id)
		return
	}
	m.alloc.Free(sc)
	m.logger.Infof("%s: Device closed", m.name)
}

// sessionFD implements vfs.FileDescriptionImpl for an open session.
type sessionFD struct {
	vfsfd vfs.FileDescription
	vfs.FileDescriptionDefaultImpl

	m  *Module
	id SessionID
}

// Release implements vfs.FileDescriptionImpl.Release.
func (fd *sessionFD) Release(context.Context) {
	fd.m.releaseSession(fd.id)
}

// Write implements vfs.FileDescriptionImpl.Write.
func (fd *sessionFD) Write(ctx context.Context, src usermem.IOSequence, opts vfs.WriteOptions) (int64, error) {
	sc := fd.m.lookup(fd.id)
	if sc == nil {
		return 0, linuxerr.EBADF
	}
	n := src.NumBytes()
	if n > BufferSize {
		fd.m.alerts.Alertf("%s: Buffer overflow", fd.m.name)
		return 0, linuxerr.EINVAL
	}
	// The size is committed before the copy and is not rolled back if the
	// copy faults.
	sc.size = int(n)
	if _, err := src.CopyIn(ctx, sc.buf[:n]); err != nil {
		fd.m.alerts.Alertf("%s: Failed to copy data from user: %v", fd.m.name, err)
		return 0, linuxerr.EFAULT
	}
	fd.m.logger.Infof("%s: Received %d bytes from user", fd.m.name, n)
	return n, nil
}

// Read implements vfs.FileDescriptionImpl.Read.
func (fd *sessionFD) Read(ctx context.Context, dst usermem.IOSequence, opts vfs.ReadOptions) (int64, error) {
	sc := fd.m.lookup(fd.id)
	if sc == nil {
		return 0, linuxerr.EBADF
	}
	n := dst.NumBytes()
	if n > BufferSize {
		n = BufferSize
	}
	if sc.size == 0 {
		copy(sc.buf[:], fallback)
		sc.size = len(fallback)
	}
	// n, not sc.size, bytes are copied; sc.size is reported.
	if _, err := dst.CopyOut(ctx, sc.buf[:n]); err != nil {
		fd.m.alerts.Alertf("%s: Failed to copy data to user: %v", fd.m.name, err)
		return 0, linuxerr.EFAULT
	}
	return int64(sc.size), nil
}

// Seek implements vfs.FileDescriptionImpl.Seek. The device has no file
// position.
func (fd *sessionFD) Seek(ctx context.Context, offset int64, whence int32) (int64, error) {
	return 0, nil
}

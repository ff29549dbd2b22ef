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

package memdev

import (
	"context"
	"io"

	"github.com/mychardev/mychardev/pkg/sentry/vfs"
	"github.com/mychardev/mychardev/pkg/usermem"
)

const nullDevMinor = 3

// nullDevice implements vfs.Device for /dev/null.
type nullDevice struct{}

// Open implements vfs.Device.Open.
func (nullDevice) Open(ctx context.Context, opts vfs.OpenOptions) (*vfs.FileDescription, error) {
	fd := &nullFD{}
	if err := fd.vfsfd.Init(fd, opts.Flags, nil); err != nil {
		return nil, err
	}
	return &fd.vfsfd, nil
}

// nullFD implements vfs.FileDescriptionImpl for /dev/null.
type nullFD struct {
	vfsfd vfs.FileDescription
	vfs.FileDescriptionDefaultImpl
}

// Release implements vfs.FileDescriptionImpl.Release.
func (fd *nullFD) Release(context.Context) {
	// noop
}

// PRead implements vfs.FileDescriptionImpl.PRead.
func (fd *nullFD) PRead(ctx context.Context, dst usermem.IOSequence, offset int64, opts vfs.ReadOptions) (int64, error) {
	return 0, io.EOF
}

// Read implements vfs.FileDescriptionImpl.Read.
func (fd *nullFD) Read(ctx context.Context, dst usermem.IOSequence, opts vfs.ReadOptions) (int64, error) {
	return 0, io.EOF
}

// PWrite implements vfs.FileDescriptionImpl.PWrite.
func (fd *nullFD) PWrite(ctx context.Context, src usermem.IOSequence, offset int64, opts vfs.WriteOptions) (int64, error) {
	return src.NumBytes(), nil
}

// Write implements vfs.FileDescriptionImpl.Write.
func (fd *nullFD) Write(ctx context.Context, src usermem.IOSequence, opts vfs.WriteOptions) (int64, error) {
	return src.NumBytes(), nil
}

// Seek implements vfs.FileDescriptionImpl.Seek.
func (fd *nullFD) Seek(ctx context.Context, offset int64, whence int32) (int64, error) {
	return 0, nil
}

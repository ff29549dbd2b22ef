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

package vfs

import (
	"context"
	"testing"

	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/usermem"
)

func openTestFD(t *testing.T, flags uint32) (*FileDescription, *testFD) {
	t.Helper()
	vfsObj := newTestVFS(t)
	dev := &testDevice{}
	if err := vfsObj.RegisterDevice(CharDevice, 240, 0, dev, nil); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	fd, err := vfsObj.OpenDeviceSpecialFile(context.Background(), CharDevice, 240, 0, OpenOptions{Flags: flags})
	if err != nil {
		t.Fatalf("OpenDeviceSpecialFile: %v", err)
	}
	if dev.opens != 1 {
		t.Fatalf("device opened %d times, want 1", dev.opens)
	}
	return fd, fd.Impl().(*testFD)
}

func TestAccessModeChecks(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name      string
		flags     uint32
		wantRead  error
		wantWrite error
	}{
		{"rdonly", linux.O_RDONLY, nil, linuxerr.EBADF},
		{"wronly", linux.O_WRONLY, linuxerr.EBADF, nil},
		{"rdwr", linux.O_RDWR, nil, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fd, _ := openTestFD(t, tc.flags)
			defer fd.DecRef(ctx)
			buf := make([]byte, 1)
			if _, err := fd.Read(ctx, usermem.BytesIOSequence(buf), ReadOptions{}); err != tc.wantRead {
				t.Errorf("Read: got %v, want %v", err, tc.wantRead)
			}
			if _, err := fd.Write(ctx, usermem.BytesIOSequence(buf), WriteOptions{}); err != tc.wantWrite {
				t.Errorf("Write: got %v, want %v", err, tc.wantWrite)
			}
		})
	}
}

func TestCreationFlagsStripped(t *testing.T) {
	fd, _ := openTestFD(t, linux.O_RDWR|linux.O_TRUNC|linux.O_CREAT|linux.O_NONBLOCK)
	defer fd.DecRef(context.Background())
	if got, want := fd.StatusFlags(), uint32(linux.O_RDWR|linux.O_NONBLOCK); got != want {
		t.Errorf("StatusFlags = %#o, want %#o", got, want)
	}
}

func TestReleaseOnLastRef(t *testing.T) {
	ctx := context.Background()
	fd, impl := openTestFD(t, linux.O_RDWR)
	fd.IncRef()
	fd.DecRef(ctx)
	if impl.released != 0 {
		t.Fatalf("released after dropping extra ref")
	}
	fd.DecRef(ctx)
	if impl.released != 1 {
		t.Fatalf("released %d times after last ref, want 1", impl.released)
	}
	// A stray DecRef must not release again.
	fd.DecRef(ctx)
	if impl.released != 1 {
		t.Errorf("released %d times after stray DecRef, want 1", impl.released)
	}
	if got := fd.ReadRefs(); got != 0 {
		t.Errorf("ReadRefs = %d, want 0", got)
	}
}

func TestDefaultImpl(t *testing.T) {
	ctx := context.Background()
	fd, _ := openTestFD(t, linux.O_RDWR)
	defer fd.DecRef(ctx)
	buf := make([]byte, 1)
	if _, err := fd.PRead(ctx, usermem.BytesIOSequence(buf), 0, ReadOptions{}); err != linuxerr.EINVAL {
		t.Errorf("PRead: got %v, want EINVAL", err)
	}
	if _, err := fd.PWrite(ctx, usermem.BytesIOSequence(buf), 0, WriteOptions{}); err != linuxerr.EINVAL {
		t.Errorf("PWrite: got %v, want EINVAL", err)
	}
	if _, err := fd.Seek(ctx, 10, 0); err != linuxerr.ESPIPE {
		t.Errorf("Seek: got %v, want ESPIPE", err)
	}
}

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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/log"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
	"github.com/mychardev/mychardev/pkg/sentry/devices/memdev"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

func loadDevice(t *testing.T) (*vfs.VirtualFilesystem, *chardev.Module) {
	t.Helper()
	ctx := context.Background()
	vfsObj, err := vfs.New(ctx)
	if err != nil {
		t.Fatalf("vfs.New: %v", err)
	}
	m, err := chardev.NewModule(chardev.Options{
		Logger: &log.BasicLogger{Level: log.Debug, Emitter: &log.TestEmitter{TestLogger: t}},
	})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	if err := m.Load(ctx, vfsObj); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { m.Unload(ctx) })
	return vfsObj, m
}

func nodeFor(t *testing.T, vfsObj *vfs.VirtualFilesystem, m *chardev.Module) *deviceNode {
	t.Helper()
	major, ok := m.Major()
	if !ok {
		t.Fatalf("module not loaded")
	}
	return &deviceNode{vfsObj: vfsObj, logger: log.Log(), major: major, perms: 0666}
}

func openHandle(t *testing.T, n *deviceNode) *handle {
	t.Helper()
	fh, fuseFlags, errno := n.Open(context.Background(), linux.O_RDWR)
	if errno != 0 {
		t.Fatalf("Open: %v", errno)
	}
	if fuseFlags&fuse.FOPEN_DIRECT_IO == 0 {
		t.Errorf("Open flags %#x lack FOPEN_DIRECT_IO", fuseFlags)
	}
	return fh.(*handle)
}

func readString(t *testing.T, h *handle, n int) (string, syscall.Errno) {
	t.Helper()
	res, errno := h.Read(context.Background(), make([]byte, n), 0)
	if errno != 0 {
		return "", errno
	}
	data, status := res.Bytes(nil)
	if !status.Ok() {
		t.Fatalf("ReadResult.Bytes: %v", status)
	}
	return string(data), 0
}

func TestHandleRoundTrip(t *testing.T) {
	vfsObj, m := loadDevice(t)
	h := openHandle(t, nodeFor(t, vfsObj, m))
	defer h.Release(context.Background())

	if n, errno := h.Write(context.Background(), []byte("HELLO"), 0); n != 5 || errno != 0 {
		t.Fatalf("Write = (%d, %v), want (5, 0)", n, errno)
	}
	// Reads larger than the stored data return only the logical size.
	got, errno := readString(t, h, 1024)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	if got != "HELLO" {
		t.Errorf("Read returned %q, want %q", got, "HELLO")
	}
}

func TestHandleFallbackClamped(t *testing.T) {
	vfsObj, m := loadDevice(t)
	h := openHandle(t, nodeFor(t, vfsObj, m))
	defer h.Release(context.Background())

	got, errno := readString(t, h, 10)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	if want := "OH HAI MY "; got != want {
		t.Errorf("Read returned %q, want %q", got, want)
	}
	got, errno = readString(t, h, 1024)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	if want := "OH HAI MY CHARDEV\x00"; got != want {
		t.Errorf("Read returned %q, want %q", got, want)
	}
}

func TestHandleErrors(t *testing.T) {
	ctx := context.Background()
	vfsObj, m := loadDevice(t)
	h := openHandle(t, nodeFor(t, vfsObj, m))

	if _, errno := h.Write(ctx, make([]byte, 2000), 0); errno != syscall.EINVAL {
		t.Errorf("oversized Write: got %v, want EINVAL", errno)
	}
	if errno := h.Release(ctx); errno != 0 {
		t.Errorf("Release: %v", errno)
	}
	if got := m.Sessions(); got != 0 {
		t.Errorf("Sessions after Release = %d, want 0", got)
	}
	if errno := h.Release(ctx); errno != syscall.EBADF {
		t.Errorf("second Release: got %v, want EBADF", errno)
	}
	if _, errno := h.Read(ctx, make([]byte, 4), 0); errno != syscall.EBADF {
		t.Errorf("Read after Release: got %v, want EBADF", errno)
	}
}

func TestHandlesAreSessions(t *testing.T) {
	ctx := context.Background()
	vfsObj, m := loadDevice(t)
	n := nodeFor(t, vfsObj, m)
	a := openHandle(t, n)
	defer a.Release(ctx)
	b := openHandle(t, n)
	defer b.Release(ctx)

	if got := m.Sessions(); got != 2 {
		t.Errorf("Sessions = %d, want 2", got)
	}
	if _, errno := a.Write(ctx, []byte("only a"), 0); errno != 0 {
		t.Fatalf("Write: %v", errno)
	}
	got, errno := readString(t, b, 1024)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	if got != "OH HAI MY CHARDEV\x00" {
		t.Errorf("second handle read %q, want the fallback", got)
	}
}

func TestEOFIsEmptyRead(t *testing.T) {
	vfsObj, _ := loadDevice(t)
	if err := memdev.Register(vfsObj); err != nil {
		t.Fatalf("memdev.Register: %v", err)
	}
	null := &deviceNode{vfsObj: vfsObj, logger: log.Log(), major: linux.MEM_MAJOR, minor: 3, perms: 0666}
	h := openHandle(t, null)
	defer h.Release(context.Background())

	if n, errno := h.Write(context.Background(), []byte("discarded"), 0); n != 9 || errno != 0 {
		t.Errorf("Write = (%d, %v), want (9, 0)", n, errno)
	}
	got, errno := readString(t, h, 64)
	if errno != 0 || got != "" {
		t.Errorf("Read = (%q, %v), want empty read", got, errno)
	}
}

func TestOpenUnloadedDevice(t *testing.T) {
	vfsObj, m := loadDevice(t)
	n := nodeFor(t, vfsObj, m)
	m.Unload(context.Background())
	if _, _, errno := n.Open(context.Background(), linux.O_RDWR); errno != syscall.ENXIO {
		t.Errorf("Open after unload: got %v, want ENXIO", errno)
	}
}

func TestAttr(t *testing.T) {
	vfsObj, m := loadDevice(t)
	n := nodeFor(t, vfsObj, m)

	var out fuse.AttrOut
	if errno := n.Getattr(context.Background(), nil, &out); errno != 0 {
		t.Fatalf("Getattr: %v", errno)
	}
	want := fuse.Attr{
		Mode:    syscall.S_IFREG | 0666,
		Nlink:   1,
		Rdev:    linux.MakeDeviceID(n.major, 0),
		Blksize: 4096,
	}
	if diff := cmp.Diff(want, out.Attr); diff != "" {
		t.Errorf("Getattr mismatch (-want +got):\n%s", diff)
	}

	truncate := fuse.SetAttrIn{SetAttrInCommon: fuse.SetAttrInCommon{Valid: fuse.FATTR_SIZE}}
	if errno := n.Setattr(context.Background(), nil, &truncate, &out); errno != 0 {
		t.Errorf("Setattr(size): got %v, want success", errno)
	}
	chmod := fuse.SetAttrIn{SetAttrInCommon: fuse.SetAttrInCommon{Valid: fuse.FATTR_MODE, Mode: 0600}}
	if errno := n.Setattr(context.Background(), nil, &chmod, &out); errno != syscall.EPERM {
		t.Errorf("Setattr(mode): got %v, want EPERM", errno)
	}
}

func TestMount(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("mounting requires root")
	}
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skipf("FUSE unavailable: %v", err)
	}
	vfsObj, _ := loadDevice(t)
	dir := t.TempDir()
	server, err := Mount(dir, vfsObj, Options{})
	if err != nil {
		t.Skipf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	f, err := os.OpenFile(filepath.Join(dir, chardev.DeviceName), os.O_RDWR|os.O_TRUNC, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("HELLO")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 5)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("HELLO")) {
		t.Errorf("read %q, want %q", buf[:n], "HELLO")
	}
	if _, err := f.Write(make([]byte, 2000)); err == nil {
		t.Errorf("oversized write succeeded")
	}
}

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

// Package chardev implements mychardev, a character device that hands every
// opener a private 1024-byte buffer. Bytes written to an open file can be
// read back from the same file; reading a file that holds nothing returns
// the greeting "OH HAI MY CHARDEV".
//
// The device keeps the observable behavior of the Linux driver it models,
// including two known defects that callers may depend on:
//
//   - Read copies the (clamped) requested length out of the buffer, but
//     reports the buffer's logical size as the transfer count. A read longer
//     than the stored data therefore also copies stale or zero bytes, and a
//     short read reports more bytes than it copied.
//   - Write records the requested length as the logical size before copying
//     from the caller. If that copy faults, the logical size still reflects
//     the failed request.
//
// Sessions are not synchronized internally; the host must serialize
// operations on each open file.
package chardev

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/log"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

const (
	// DeviceName is the name the device registers under.
	DeviceName = "mychardev"

	// BufferSize is the capacity of each session's buffer.
	BufferSize = 1024

	chardevMinor = 0
)

// fallback is copied into an empty session's buffer on read. Its length
// includes the trailing NUL of the C string literal.
const fallback = "OH HAI MY CHARDEV\x00"

// ErrRegistration is returned by Module.Load when the device could not be
// registered with the host.
var ErrRegistration = errors.New("failed to register character device")

// Options configures a Module.
type Options struct {
	// Name is the registered device name. If empty, DeviceName is used.
	Name string

	// Allocator selects how session contexts are allocated. If empty,
	// FreshAllocator is used.
	Allocator AllocatorKind

	// MaxSessions bounds the number of live session contexts. Opens beyond
	// the bound fail with ENOMEM. Zero means unbounded.
	MaxSessions int

	// Logger receives the device's log messages. If nil, the global logger
	// is used.
	Logger log.Logger

	// AlertEvery rate limits alerts that callers can trigger repeatedly
	// (oversized writes, copy faults). Zero disables rate limiting.
	AlertEvery time.Duration
}

// Module is the loadable unit that owns the device registration and every
// open session.
type Module struct {
	name   string
	alloc  allocator
	logger log.Logger
	alerts log.Logger

	// mu protects the device registration record below.
	mu         sync.Mutex
	vfsObj     *vfs.VirtualFilesystem
	major      uint32
	registered bool

	// sessions maps live session IDs to their contexts. sessions is
	// protected by sessionsMu.
	sessionsMu sync.Mutex
	sessions   map[SessionID]*sessionContext
	lastID     atomic.Uint64
}

// NewModule returns an unloaded Module.
func NewModule(opts Options) (*Module, error) {
	alloc, err := newAllocator(opts.Allocator, opts.MaxSessions)
	if err != nil {
		return nil, err
	}
	m := &Module{
		name:     opts.Name,
		alloc:    alloc,
		logger:   opts.Logger,
		sessions: make(map[SessionID]*sessionContext),
	}
	if m.name == "" {
		m.name = DeviceName
	}
	if m.logger == nil {
		m.logger = log.Log()
	}
	m.alerts = m.logger
	if opts.AlertEvery > 0 {
		m.alerts = log.RateLimitedLogger(m.logger, opts.AlertEvery)
	}
	return m, nil
}

// Name returns the registered device name.
func (m *Module) Name() string {
	return m.name
}

// Load registers the device with vfsObj under a dynamically allocated major
// number. If registration fails nothing is published, the error wraps
// ErrRegistration, and the module stays unloaded.
func (m *Module) Load(ctx context.Context, vfsObj *vfs.VirtualFilesystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return fmt.Errorf("%s: module already loaded with major %d: %w", m.name, m.major, linuxerr.EBUSY)
	}
	major, err := m.register(vfsObj)
	if err != nil {
		m.logger.Alertf("%s: Failed to register character device: %v", m.name, err)
		m.logger.Alertf("%s: Module failed to load", m.name)
		return fmt.Errorf("%s: %w: %w", m.name, ErrRegistration, err)
	}
	m.vfsObj = vfsObj
	m.major = major
	m.registered = true
	m.logger.Infof("%s: Registered successfully with major number %d", m.name, major)
	m.logger.Infof("%s: Module loaded successfully!", m.name)
	return nil
}

func (m *Module) register(vfsObj *vfs.VirtualFilesystem) (uint32, error) {
	major, err := vfsObj.GetDynamicCharDevMajor()
	if err != nil {
		return 0, fmt.Errorf("allocating device major number: %w", err)
	}
	if err := vfsObj.RegisterDevice(vfs.CharDevice, major, chardevMinor, &chardevDevice{m: m}, &vfs.RegisterDeviceOptions{
		GroupName: m.name,
		Pathname:  m.name,
		FilePerms: 0666,
	}); err != nil {
		vfsObj.PutDynamicCharDevMajor(major)
		return 0, err
	}
	return major, nil
}

// Unload unregisters the device if Load succeeded. It is best effort and
// always succeeds. Sessions that are still open keep working until released.
func (m *Module) Unload(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		if err := m.vfsObj.UnregisterDevice(vfs.CharDevice, m.major, chardevMinor); err != nil {
			m.logger.Warningf("%s: unregistering major %d: %v", m.name, m.major, err)
		}
		m.vfsObj.PutDynamicCharDevMajor(m.major)
		m.vfsObj = nil
		m.major = 0
		m.registered = false
	}
	m.logger.Infof("%s: Module unloaded.", m.name)
}

// Major returns the major number the device is registered under, and false
// if the module is not loaded.
func (m *Module) Major() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.major, m.registered
}

// Open opens a new session on the loaded device, as open(2) on its device
// file would. It returns ENODEV if the module is not loaded.
func (m *Module) Open(ctx context.Context, flags uint32) (*vfs.FileDescription, error) {
	m.mu.Lock()
	vfsObj, major, ok := m.vfsObj, m.major, m.registered
	m.mu.Unlock()
	if !ok {
		return nil, linuxerr.ENODEV
	}
	return vfsObj.OpenDeviceSpecialFile(ctx, vfs.CharDevice, major, chardevMinor, vfs.OpenOptions{Flags: flags})
}

// Sessions returns the number of open sessions.
func (m *Module) Sessions() int {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	return len(m.sessions)
}

// Allocated returns the number of session contexts currently allocated.
func (m *Module) Allocated() int64 {
	return m.alloc.Live()
}

// chardevDevice implements vfs.Device for the registered device node.
type chardevDevice struct {
	m *Module
}

// Open implements vfs.Device.Open.
func (d *chardevDevice) Open(ctx context.Context, opts vfs.OpenOptions) (*vfs.FileDescription, error) {
	return d.m.openSession(ctx, opts)
}

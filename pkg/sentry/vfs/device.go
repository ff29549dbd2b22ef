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
	"fmt"
	"sort"
	"strings"

	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
)

// DeviceKind indicates whether a device is a block or character device.
type DeviceKind uint32

const (
	// BlockDevice indicates a block device.
	BlockDevice DeviceKind = iota

	// CharDevice indicates a character device.
	CharDevice
)

// String implements fmt.Stringer.String.
func (kind DeviceKind) String() string {
	switch kind {
	case BlockDevice:
		return "block"
	case CharDevice:
		return "character"
	default:
		return fmt.Sprintf("invalid device kind %d", kind)
	}
}

type devTuple struct {
	kind  DeviceKind
	major uint32
	minor uint32
}

func lessTuple(a, b devTuple) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	if a.major != b.major {
		return a.major < b.major
	}
	return a.minor < b.minor
}

func lessDevice(a, b *registeredDevice) bool {
	return lessTuple(a.tup, b.tup)
}

// A Device backs device special files.
type Device interface {
	// Open returns a FileDescription representing this device.
	Open(ctx context.Context, opts OpenOptions) (*FileDescription, error)
}

type registeredDevice struct {
	tup  devTuple
	dev  Device
	opts RegisterDeviceOptions
}

// RegisterDeviceOptions contains options to
// VirtualFilesystem.RegisterDevice().
type RegisterDeviceOptions struct {
	// GroupName is the name shown for this device registration in
	// /proc/devices. If GroupName is empty, this registration will not be
	// shown in /proc/devices.
	GroupName string

	// Pathname is the name for the device file of this device in /dev
	// directory. If Pathname is empty, then no device file is created.
	Pathname string

	// FilePerms are the permission bits to create the device file with. Only
	// used if Pathname is provided.
	FilePerms uint16
}

// RegisterDevice registers the given Device in vfs with the given major and
// minor device numbers.
func (vfs *VirtualFilesystem) RegisterDevice(kind DeviceKind, major, minor uint32, dev Device, opts *RegisterDeviceOptions) error {
	rd := &registeredDevice{
		tup: devTuple{kind, major, minor},
		dev: dev,
	}
	if opts != nil {
		rd.opts = *opts
	}
	vfs.devicesMu.Lock()
	defer vfs.devicesMu.Unlock()
	if existing, ok := vfs.devices.Get(rd); ok {
		return fmt.Errorf("%s device number (%d, %d) is already registered to device type %T: %w", kind, major, minor, existing.dev, linuxerr.EEXIST)
	}
	vfs.devices.ReplaceOrInsert(rd)
	return nil
}

// UnregisterDevice removes the registration of the device with the given
// major and minor device numbers. It returns ENXIO if no such device is
// registered.
func (vfs *VirtualFilesystem) UnregisterDevice(kind DeviceKind, major, minor uint32) error {
	vfs.devicesMu.Lock()
	defer vfs.devicesMu.Unlock()
	if _, ok := vfs.devices.Delete(&registeredDevice{tup: devTuple{kind, major, minor}}); !ok {
		return linuxerr.ENXIO
	}
	return nil
}

// IsDeviceRegistered returns true if the device with the given major and
// minor device numbers is registered.
func (vfs *VirtualFilesystem) IsDeviceRegistered(kind DeviceKind, major, minor uint32) bool {
	vfs.devicesMu.RLock()
	defer vfs.devicesMu.RUnlock()
	return vfs.devices.Has(&registeredDevice{tup: devTuple{kind, major, minor}})
}

// GetRegisteredDevice returns the device registered with the given major and
// minor device numbers, or nil.
func (vfs *VirtualFilesystem) GetRegisteredDevice(kind DeviceKind, major, minor uint32) Device {
	vfs.devicesMu.RLock()
	defer vfs.devicesMu.RUnlock()
	rd, ok := vfs.devices.Get(&registeredDevice{tup: devTuple{kind, major, minor}})
	if !ok {
		return nil
	}
	return rd.dev
}

// OpenDeviceSpecialFile returns a FileDescription representing the given
// device.
func (vfs *VirtualFilesystem) OpenDeviceSpecialFile(ctx context.Context, kind DeviceKind, major, minor uint32, opts OpenOptions) (*FileDescription, error) {
	dev := vfs.GetRegisteredDevice(kind, major, minor)
	if dev == nil {
		return nil, linuxerr.ENXIO
	}
	return dev.Open(ctx, opts)
}

// ForEachDevice calls the given callback for each registered device, in
// (kind, major, minor) order.
func (vfs *VirtualFilesystem) ForEachDevice(cb func(pathname string, kind DeviceKind, major, minor uint32, perms uint16) error) error {
	vfs.devicesMu.RLock()
	var devs []*registeredDevice
	vfs.devices.Ascend(func(rd *registeredDevice) bool {
		devs = append(devs, rd)
		return true
	})
	vfs.devicesMu.RUnlock()

	// Callbacks may register or open devices, so they run without devicesMu.
	for _, rd := range devs {
		if err := cb(rd.opts.Pathname, rd.tup.kind, rd.tup.major, rd.tup.minor, rd.opts.FilePerms); err != nil {
			return err
		}
	}
	return nil
}

// DevicesTable returns the contents of /proc/devices: every registered group
// name, once per major number, under its device kind.
func (vfs *VirtualFilesystem) DevicesTable() string {
	type entry struct {
		major uint32
		name  string
	}
	groups := map[DeviceKind][]entry{}
	vfs.devicesMu.RLock()
	vfs.devices.Ascend(func(rd *registeredDevice) bool {
		if rd.opts.GroupName == "" {
			return true
		}
		es := groups[rd.tup.kind]
		if n := len(es); n > 0 && es[n-1].major == rd.tup.major && es[n-1].name == rd.opts.GroupName {
			return true
		}
		groups[rd.tup.kind] = append(es, entry{rd.tup.major, rd.opts.GroupName})
		return true
	})
	vfs.devicesMu.RUnlock()

	var b strings.Builder
	for i, kind := range []DeviceKind{CharDevice, BlockDevice} {
		if i > 0 {
			b.WriteString("\n")
		}
		if kind == CharDevice {
			b.WriteString("Character devices:\n")
		} else {
			b.WriteString("Block devices:\n")
		}
		es := groups[kind]
		sort.SliceStable(es, func(i, j int) bool { return es[i].major < es[j].major })
		for _, e := range es {
			fmt.Fprintf(&b, "%3d %s\n", e.major, e.name)
		}
	}
	return b.String()
}

// majorInUseLocked returns true if any device of the given kind is registered
// under major.
//
// Preconditions: vfs.devicesMu must be locked.
func (vfs *VirtualFilesystem) majorInUseLocked(kind DeviceKind, major uint32) bool {
	inUse := false
	vfs.devices.AscendGreaterOrEqual(&registeredDevice{tup: devTuple{kind, major, 0}}, func(rd *registeredDevice) bool {
		inUse = rd.tup.kind == kind && rd.tup.major == major
		return false
	})
	return inUse
}

// GetDynamicCharDevMajor allocates and returns an unused major device number
// for a character device or set of character devices.
func (vfs *VirtualFilesystem) GetDynamicCharDevMajor() (uint32, error) {
	vfs.devicesMu.RLock()
	defer vfs.devicesMu.RUnlock()
	vfs.dynCharDevMajorMu.Lock()
	defer vfs.dynCharDevMajorMu.Unlock()
	available := func(major uint32) bool {
		if _, ok := vfs.dynCharDevMajorUsed[major]; ok {
			return false
		}
		return !vfs.majorInUseLocked(CharDevice, major)
	}
	// Compare Linux's fs/char_dev.c:find_dynamic_major().
	for major := uint32(linux.CHRDEV_MAJOR_MAX - 1); major >= linux.CHRDEV_MAJOR_DYN_END; major-- {
		if available(major) {
			vfs.dynCharDevMajorUsed[major] = struct{}{}
			return major, nil
		}
	}
	for major := uint32(linux.CHRDEV_MAJOR_DYN_EXT_START); major >= linux.CHRDEV_MAJOR_DYN_EXT_END; major-- {
		if available(major) {
			vfs.dynCharDevMajorUsed[major] = struct{}{}
			return major, nil
		}
	}
	return 0, linuxerr.EBUSY
}

// PutDynamicCharDevMajor deallocates a major device number returned by a
// previous call to GetDynamicCharDevMajor.
func (vfs *VirtualFilesystem) PutDynamicCharDevMajor(major uint32) {
	vfs.dynCharDevMajorMu.Lock()
	defer vfs.dynCharDevMajorMu.Unlock()
	delete(vfs.dynCharDevMajorUsed, major)
}

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

// Package vfs implements the device-facing half of a virtual filesystem: the
// registry that maps device numbers to drivers, and the open file
// descriptions that drivers hand back to callers.
//
// Lock order:
//
//	VirtualFilesystem.devicesMu
//		VirtualFilesystem.dynCharDevMajorMu
package vfs

import (
	"context"
	"sync"

	"github.com/google/btree"
)

// A VirtualFilesystem (VFS for short) combines Filesystems in trees of Mounts.
// Here it holds the device state a host kernel keeps on behalf of drivers.
//
// There is no analogue to the VirtualFilesystem type in Linux, as the
// equivalent state in Linux is global.
type VirtualFilesystem struct {
	// devices contains all registered Devices, ordered by (kind, major,
	// minor). devices is protected by devicesMu.
	devicesMu sync.RWMutex
	devices   *btree.BTreeG[*registeredDevice]

	// dynCharDevMajorUsed contains all allocated dynamic character device
	// major numbers. dynCharDevMajor is protected by dynCharDevMajorMu.
	dynCharDevMajorMu   sync.Mutex
	dynCharDevMajorUsed map[uint32]struct{}
}

// Init initializes a new VirtualFilesystem with no mounts or FilesystemTypes.
func (vfs *VirtualFilesystem) Init(ctx context.Context) error {
	if vfs.devices != nil {
		panic("VFS already initialized")
	}
	vfs.devices = btree.NewG[*registeredDevice](2, lessDevice)
	vfs.dynCharDevMajorUsed = make(map[uint32]struct{})
	return nil
}

// New returns an initialized VirtualFilesystem.
func New(ctx context.Context) (*VirtualFilesystem, error) {
	vfsObj := &VirtualFilesystem{}
	if err := vfsObj.Init(ctx); err != nil {
		return nil, err
	}
	return vfsObj, nil
}

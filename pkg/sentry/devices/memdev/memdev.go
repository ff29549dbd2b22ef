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

// Package memdev implements the memory character devices /dev/null and
// /dev/zero.
package memdev

import (
	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

// Register registers all devices implemented by this package in vfsObj.
func Register(vfsObj *vfs.VirtualFilesystem) error {
	for minor, spec := range map[uint32]struct {
		dev      vfs.Device
		pathname string
	}{
		nullDevMinor: {nullDevice{}, "null"},
		zeroDevMinor: {zeroDevice{}, "zero"},
	} {
		if err := vfsObj.RegisterDevice(vfs.CharDevice, linux.MEM_MAJOR, minor, spec.dev, &vfs.RegisterDeviceOptions{
			GroupName: "mem",
			Pathname:  spec.pathname,
			FilePerms: 0666,
		}); err != nil {
			return err
		}
	}
	return nil
}

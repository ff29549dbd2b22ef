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

// Package linux contains the constants and types needed to interface with a
// Linux kernel's character device layer.
package linux

// Character device major numbers with fixed assignments. See
// Documentation/admin-guide/devices.txt.
const (
	// UNNAMED_MAJOR is the major device number for "unnamed" devices.
	UNNAMED_MAJOR = 0

	// MEM_MAJOR is the major device number for "memory" character devices,
	// such as /dev/null.
	MEM_MAJOR = 1

	// TTYAUX_MAJOR is the major device number for alternate TTY devices.
	TTYAUX_MAJOR = 5

	// MISC_MAJOR is the major device number for non-serial mice, misc feature
	// devices.
	MISC_MAJOR = 10
)

// Dynamically allocated character device major numbers. See fs/char_dev.c:
// find_dynamic_major() and include/linux/fs.h.
//
// Allocation scans the primary range from the top down, then the extended
// range from the top down.
const (
	// CHRDEV_MAJOR_MAX is one past the largest major number of the primary
	// range (CHRDEV_MAJOR_HASH_SIZE).
	CHRDEV_MAJOR_MAX = 255

	// CHRDEV_MAJOR_DYN_END is the lowest major of the primary dynamic range.
	CHRDEV_MAJOR_DYN_END = 234

	// CHRDEV_MAJOR_DYN_EXT_START is the highest major of the extended dynamic
	// range.
	CHRDEV_MAJOR_DYN_EXT_START = 511

	// CHRDEV_MAJOR_DYN_EXT_END is the lowest major of the extended dynamic
	// range.
	CHRDEV_MAJOR_DYN_EXT_END = 384
)

// MINORBITS is the number of bits in a device minor number.
const MINORBITS = 20

// MakeDeviceID encodes a major and minor device number into a single device
// ID, as the kernel's MKDEV macro does.
func MakeDeviceID(major uint32, minor uint32) uint32 {
	return (major << MINORBITS) | minor
}

// DecodeDeviceID decodes a device ID into major and minor device numbers.
func DecodeDeviceID(rdev uint32) (uint32, uint32) {
	return rdev >> MINORBITS, rdev & ((1 << MINORBITS) - 1)
}

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

package linuxerr_test

import (
	"fmt"
	"testing"

	"github.com/mychardev/mychardev/pkg/errors"
	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"golang.org/x/sys/unix"
)

func TestToUnix(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want unix.Errno
	}{
		{name: "nil", err: nil, want: 0},
		{name: "linuxerr", err: linuxerr.EINVAL, want: unix.EINVAL},
		{name: "wrapped linuxerr", err: fmt.Errorf("opening: %w", linuxerr.ENOMEM), want: unix.ENOMEM},
		{name: "unix errno", err: unix.EFAULT, want: unix.EFAULT},
		{name: "wrapped unix errno", err: fmt.Errorf("copy: %w", unix.EBUSY), want: unix.EBUSY},
		{name: "other", err: fmt.Errorf("no errno here"), want: unix.EIO},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := linuxerr.ToUnix(tc.err); got != tc.want {
				t.Errorf("ToUnix(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorFromUnix(t *testing.T) {
	for _, tc := range []struct {
		errno unix.Errno
		want  error
	}{
		{0, nil},
		{unix.EBADF, linuxerr.EBADF},
		{unix.ESPIPE, linuxerr.ESPIPE},
		{unix.ENXIO, linuxerr.ENXIO},
		{unix.ELOOP, linuxerr.EIO},
	} {
		if got := linuxerr.ErrorFromUnix(tc.errno); got != tc.want {
			t.Errorf("ErrorFromUnix(%v) = %v, want %v", tc.errno, got, tc.want)
		}
	}
}

func TestEquals(t *testing.T) {
	for _, tc := range []struct {
		name string
		e    *errors.Error
		err  error
		want bool
	}{
		{name: "both nil", e: nil, err: nil, want: true},
		{name: "nil error", e: linuxerr.EBUSY, err: nil, want: false},
		{name: "nil linuxerr", e: nil, err: linuxerr.EBUSY, want: false},
		{name: "same", e: linuxerr.EBUSY, err: linuxerr.EBUSY, want: true},
		{name: "different", e: linuxerr.EBUSY, err: linuxerr.EEXIST, want: false},
		{name: "wrapped twice", e: linuxerr.EEXIST, err: fmt.Errorf("a: %w", fmt.Errorf("b: %w", linuxerr.EEXIST)), want: true},
		{name: "unix errno", e: linuxerr.ENODEV, err: unix.ENODEV, want: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := linuxerr.Equals(tc.e, tc.err); got != tc.want {
				t.Errorf("Equals(%v, %v) = %t, want %t", tc.e, tc.err, got, tc.want)
			}
		})
	}
}

func TestToError(t *testing.T) {
	if err := linuxerr.ToError(nil); err != nil {
		t.Errorf("ToError(nil) = %v, want untyped nil", err)
	}
	if err := linuxerr.ToError(linuxerr.EPERM); err != linuxerr.EPERM {
		t.Errorf("ToError(EPERM) = %v, want EPERM", err)
	}
}

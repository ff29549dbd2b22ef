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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"github.com/mychardev/mychardev/pkg/abi/linux/errno"
	"github.com/mychardev/mychardev/pkg/errors"
	"golang.org/x/sys/unix"
)

// The following errors are semantically identical to Errno of type
// unix.Errno. Since the types are distinct (these are *errors.Error), they
// are not directly comparable; use ToUnix or Equals.
var (
	EPERM      = errors.New(errno.EPERM, "operation not permitted")
	ENOENT     = errors.New(errno.ENOENT, "no such file or directory")
	EIO        = errors.New(errno.EIO, "I/O error")
	ENXIO      = errors.New(errno.ENXIO, "no such device or address")
	EBADF      = errors.New(errno.EBADF, "bad file number")
	EAGAIN     = errors.New(errno.EAGAIN, "try again")
	ENOMEM     = errors.New(errno.ENOMEM, "out of memory")
	EACCES     = errors.New(errno.EACCES, "permission denied")
	EFAULT     = errors.New(errno.EFAULT, "bad address")
	EBUSY      = errors.New(errno.EBUSY, "device or resource busy")
	EEXIST     = errors.New(errno.EEXIST, "file exists")
	ENODEV     = errors.New(errno.ENODEV, "no such device")
	EINVAL     = errors.New(errno.EINVAL, "invalid argument")
	ENOSPC     = errors.New(errno.ENOSPC, "no space left on device")
	ESPIPE     = errors.New(errno.ESPIPE, "illegal seek")
	ENOSYS     = errors.New(errno.ENOSYS, "invalid system call number")
	EOPNOTSUPP = errors.New(errno.EOPNOTSUPP, "operation not supported on transport endpoint")
)

var errorsByErrno = map[errno.Errno]*errors.Error{
	errno.EPERM:      EPERM,
	errno.ENOENT:     ENOENT,
	errno.EIO:        EIO,
	errno.ENXIO:      ENXIO,
	errno.EBADF:      EBADF,
	errno.EAGAIN:     EAGAIN,
	errno.ENOMEM:     ENOMEM,
	errno.EACCES:     EACCES,
	errno.EFAULT:     EFAULT,
	errno.EBUSY:      EBUSY,
	errno.EEXIST:     EEXIST,
	errno.ENODEV:     ENODEV,
	errno.EINVAL:     EINVAL,
	errno.ENOSPC:     ENOSPC,
	errno.ESPIPE:     ESPIPE,
	errno.ENOSYS:     ENOSYS,
	errno.EOPNOTSUPP: EOPNOTSUPP,
}

// ErrorFromUnix returns the *errors.Error for the given unix.Errno. Unknown
// errnos are reported as EIO.
func ErrorFromUnix(err unix.Errno) error {
	if err == 0 {
		return nil
	}
	if e, ok := errorsByErrno[errno.Errno(err)]; ok {
		return e
	}
	return EIO
}

// ToError converts a linuxerr to an error type. A nil *errors.Error becomes a
// nil error rather than a typed nil.
func ToError(err *errors.Error) error {
	if err == nil {
		return nil
	}
	return err
}

// ToUnix converts err to the equivalent unix.Errno. It unwraps err looking for
// an *errors.Error or a unix.Errno; any other non-nil error maps to EIO.
func ToUnix(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var le *errors.Error
	if goerrors.As(err, &le) {
		return unix.Errno(le.Errno())
	}
	var ue unix.Errno
	if goerrors.As(err, &ue) {
		return ue
	}
	return unix.EIO
}

// Equals compares a linuxerr to a given error. It handles wrapped errors and
// unix.Errno values.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == nil
	}
	if e == nil {
		return false
	}
	return ToUnix(err) == unix.Errno(e.Errno())
}

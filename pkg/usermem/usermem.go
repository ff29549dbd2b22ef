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

// Package usermem governs access to user memory.
//
// Device implementations never touch caller memory directly. They are handed
// an IOSequence naming a region of the caller's address space and move bytes
// across the boundary with CopyIn and CopyOut, which fail with EFAULT when
// the region is not accessible.
package usermem

import (
	"context"

	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/hostarch"
)

// IO provides access to the contents of a virtual memory space.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts IOOpts) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(dst), it returns a non-nil error explaining why.
	CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts IOOpts) (int, error)
}

// IOOpts contains options applicable to all IO methods.
type IOOpts struct {
	// If IgnorePermissions is true, application-defined memory protections set
	// by mmap(2) or mprotect(2) will be ignored. (Memory protections required
	// by the target of the mapping are never ignored.)
	IgnorePermissions bool
}

// IOSequence holds arguments to IO methods.
type IOSequence struct {
	IO    IO
	Addrs hostarch.AddrRange
	Opts  IOOpts
}

// NumBytes returns the number of bytes the caller asked to transfer.
func (s IOSequence) NumBytes() int64 {
	return int64(s.Addrs.Length())
}

// DropFirst returns a copy of s with s.Addrs.Start advanced by n bytes. If
// n > s.NumBytes(), the returned sequence is empty.
func (s IOSequence) DropFirst(n int) IOSequence {
	if int64(n) >= s.NumBytes() {
		return IOSequence{IO: s.IO, Addrs: hostarch.AddrRange{Start: s.Addrs.End, End: s.Addrs.End}, Opts: s.Opts}
	}
	s.Addrs.Start += hostarch.Addr(n)
	return s
}

// TakeFirst returns a copy of s limited to its first n bytes.
func (s IOSequence) TakeFirst(n int) IOSequence {
	if int64(n) < s.NumBytes() {
		s.Addrs.End = s.Addrs.Start + hostarch.Addr(n)
	}
	return s
}

// CopyOut invokes s.IO.CopyOut over s.Addrs. src must not be longer than
// the sequence.
func (s IOSequence) CopyOut(ctx context.Context, src []byte) (int, error) {
	if int64(len(src)) > s.NumBytes() {
		return 0, linuxerr.EFAULT
	}
	return s.IO.CopyOut(ctx, s.Addrs.Start, src, s.Opts)
}

// CopyIn invokes s.IO.CopyIn over s.Addrs. dst must not be longer than the
// sequence.
func (s IOSequence) CopyIn(ctx context.Context, dst []byte) (int, error) {
	if int64(len(dst)) > s.NumBytes() {
		return 0, linuxerr.EFAULT
	}
	return s.IO.CopyIn(ctx, s.Addrs.Start, dst, s.Opts)
}

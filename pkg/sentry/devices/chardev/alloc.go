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

package chardev

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
)

// AllocatorKind names a session context allocation strategy.
type AllocatorKind string

const (
	// FreshAllocator allocates a new zeroed context for every open.
	FreshAllocator AllocatorKind = "fresh"

	// PooledAllocator reuses released contexts and clears them before they
	// are handed out again.
	PooledAllocator AllocatorKind = "pooled"
)

// allocator obtains and frees session contexts. Every context it returns is
// zeroed.
type allocator interface {
	Alloc() (*sessionContext, error)
	Free(sc *sessionContext)
	Live() int64
}

func newAllocator(kind AllocatorKind, max int) (allocator, error) {
	if max < 0 {
		return nil, fmt.Errorf("invalid session limit %d", max)
	}
	acct := accounting{max: int64(max)}
	switch kind {
	case "", FreshAllocator:
		return &freshAllocator{accounting: acct}, nil
	case PooledAllocator:
		return &pooledAllocator{
			accounting: acct,
			pool: sync.Pool{
				New: func() any { return new(sessionContext) },
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown allocator %q, must be %q or %q", kind, FreshAllocator, PooledAllocator)
	}
}

// accounting tracks live contexts against an optional limit.
type accounting struct {
	max  int64
	live atomic.Int64
}

func (a *accounting) reserve() error {
	if v := a.live.Add(1); a.max > 0 && v > a.max {
		a.live.Add(-1)
		return fmt.Errorf("%d session contexts live: %w", a.max, linuxerr.ENOMEM)
	}
	return nil
}

func (a *accounting) unreserve() {
	a.live.Add(-1)
}

// Live returns the number of contexts allocated and not yet freed.
func (a *accounting) Live() int64 {
	return a.live.Load()
}

type freshAllocator struct {
	accounting
}

// Alloc implements allocator.Alloc.
func (a *freshAllocator) Alloc() (*sessionContext, error) {
	if err := a.reserve(); err != nil {
		return nil, err
	}
	return new(sessionContext), nil
}

// Free implements allocator.Free.
func (a *freshAllocator) Free(sc *sessionContext) {
	if sc == nil {
		return
	}
	a.unreserve()
}

type pooledAllocator struct {
	accounting
	pool sync.Pool
}

// Alloc implements allocator.Alloc.
func (a *pooledAllocator) Alloc() (*sessionContext, error) {
	if err := a.reserve(); err != nil {
		return nil, err
	}
	sc := a.pool.Get().(*sessionContext)
	*sc = sessionContext{}
	return sc, nil
}

// Free implements allocator.Free.
func (a *pooledAllocator) Free(sc *sessionContext) {
	if sc == nil {
		return
	}
	a.unreserve()
	a.pool.Put(sc)
}

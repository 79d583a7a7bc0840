// Copyright 2025 The pagecache Authors.
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

package frame

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/kernmem/pagecache/internal/monitor"
)

// ErrNoMemory is returned when the allocator's capacity is exhausted.
var ErrNoMemory = errors.New("out of memory")

// Allocator hands out zero-filled page frames up to a fixed capacity.
// Released frames are pooled for reuse. Safe for concurrent use.
type Allocator struct {
	sem       *semaphore.Weighted
	freeCh    chan *Frame
	maxFrames int64

	outstanding atomic.Int64
}

// NewAllocator creates an allocator that fails allocations once
// maxFrames frames are outstanding.
func NewAllocator(maxFrames int64) (*Allocator, error) {
	if maxFrames <= 0 {
		return nil, fmt.Errorf("invalid configuration provided for frame allocator, maxFrames: %d", maxFrames)
	}
	return &Allocator{
		sem:       semaphore.NewWeighted(maxFrames),
		freeCh:    make(chan *Frame, maxFrames),
		maxFrames: maxFrames,
	}, nil
}

// Allocate returns a zero-filled frame with a reference count of one,
// or ErrNoMemory when the capacity is exhausted. Allocation never
// blocks waiting for a release.
func (a *Allocator) Allocate() (*Frame, error) {
	if !a.sem.TryAcquire(1) {
		return nil, ErrNoMemory
	}

	var f *Frame
	select {
	case f = <-a.freeCh:
		clear(f.data)
	default:
		f = &Frame{data: make([]byte, PageSize), pool: a}
	}

	f.refs.Store(1)
	a.outstanding.Add(1)
	monitor.FrameAllocated(context.Background())
	return f, nil
}

// release returns a frame whose last reference was dropped.
func (a *Allocator) release(f *Frame) {
	a.outstanding.Add(-1)
	a.sem.Release(1)
	monitor.FrameReleased(context.Background())

	select {
	case a.freeCh <- f:
	default:
		// Pool full; let the garbage collector have it.
	}
}

// Stats is a point-in-time snapshot of allocator usage.
type Stats struct {
	// MaxFrames is the configured capacity.
	MaxFrames int64

	// Outstanding is the number of frames currently held by callers.
	Outstanding int64

	// Pooled is the number of released frames available for reuse.
	Pooled int64
}

func (s Stats) String() string {
	return fmt.Sprintf("frames: %d/%d outstanding, %d pooled", s.Outstanding, s.MaxFrames, s.Pooled)
}

// Stats returns a snapshot of allocator usage.
func (a *Allocator) Stats() Stats {
	return Stats{
		MaxFrames:   a.maxFrames,
		Outstanding: a.outstanding.Load(),
		Pooled:      int64(len(a.freeCh)),
	}
}

////////////////////////////////////////////////////////////////////////
// Default allocator
////////////////////////////////////////////////////////////////////////

const defaultMaxFrames = 4096

var (
	defaultAllocator   *Allocator
	defaultAllocatorMu sync.Mutex
)

// Default returns the process-wide allocator, creating it with the
// default capacity on first use.
func Default() *Allocator {
	defaultAllocatorMu.Lock()
	defer defaultAllocatorMu.Unlock()

	if defaultAllocator == nil {
		defaultAllocator, _ = NewAllocator(defaultMaxFrames)
	}
	return defaultAllocator
}

// SetDefault replaces the process-wide allocator. Frames already
// handed out stay bound to the allocator they came from.
func SetDefault(a *Allocator) {
	defaultAllocatorMu.Lock()
	defer defaultAllocatorMu.Unlock()

	defaultAllocator = a
}

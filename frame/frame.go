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

// Package frame provides page-sized physical frames and the allocator
// that hands them out. Frames are reference counted; the last release
// returns the frame to its allocator's free list.
package frame

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	// PageShift is log2 of the page size, shared with the VM layer.
	PageShift = 12

	// PageSize is the size in bytes of every frame.
	PageSize = 1 << PageShift
)

// Frame is an owned page-sized buffer. A frame handed out by an
// Allocator starts with a reference count of one; IncRef/Release
// balance additional holders.
type Frame struct {
	data []byte
	pool *Allocator // nil for the canonical zero frame
	refs atomic.Int32
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%#x)", f.Base())
}

// Base returns the frame's base address, suitable for page-table
// entries. Two frames are the same frame iff their bases are equal.
func (f *Frame) Base() uintptr {
	return uintptr(unsafe.Pointer(&f.data[0]))
}

// Bytes returns the frame's PageSize-byte backing slice.
func (f *Frame) Bytes() []byte {
	return f.data
}

// Refcount returns the current reference count. Test and debug use.
func (f *Frame) Refcount() int {
	return int(f.refs.Load())
}

// IncRef adds a reference to the frame.
func (f *Frame) IncRef() {
	if f.refs.Add(1) <= 1 {
		panic("IncRef on a released frame")
	}
}

// Release drops one reference. The last release returns the frame to
// its allocator; the frame must not be used afterwards.
func (f *Frame) Release() {
	n := f.refs.Add(-1)
	if n < 0 {
		panic("Release on a released frame")
	}
	if n == 0 && f.pool != nil {
		f.pool.release(f)
	}
}

// Copy allocates a fresh frame from the supplied allocator with the
// first n bytes copied from f and the remainder zero.
func (f *Frame) Copy(a *Allocator, n int) (*Frame, error) {
	c, err := a.Allocate()
	if err != nil {
		return nil, err
	}
	copy(c.data[:n], f.data[:n])
	return c, nil
}

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

// Package fake provides an in-memory Backend for tests: it counts
// operations and can run a caller-supplied hook in the middle of every
// read, which tests use to interleave other work with backend I/O.
package fake

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Backend is an in-memory byte store.
type Backend struct {
	mu   sync.Mutex
	data []byte // GUARDED_BY(mu)

	readCount  atomic.Int64
	writeCount atomic.Int64
	flushCount atomic.Int64

	// ReadHook, when non-nil, runs at the start of every ReadAt, outside
	// the data lock.
	ReadHook func(offset int64, len int)

	// WriteErr, when non-nil, is returned by every WriteAt.
	WriteErr error
}

// New creates a backend holding a copy of the supplied initial bytes.
func New(initial []byte) *Backend {
	return &Backend{data: append([]byte(nil), initial...)}
}

func (b *Backend) ReadAt(_ context.Context, p []byte, offset int64) (int, error) {
	b.readCount.Add(1)
	if b.ReadHook != nil {
		b.ReadHook(offset, len(p))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *Backend) WriteAt(_ context.Context, p []byte, offset int64) (int, error) {
	b.writeCount.Add(1)
	if b.WriteErr != nil {
		return 0, b.WriteErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if end := offset + int64(len(p)); end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	return copy(b.data[offset:], p), nil
}

func (b *Backend) Size(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return int64(len(b.data)), nil
}

func (b *Backend) Flush(_ context.Context) error {
	b.flushCount.Add(1)
	return nil
}

// Bytes returns a copy of the store's current contents.
func (b *Backend) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]byte(nil), b.data...)
}

// ByteAt returns the byte at the given offset, or zero past the end.
func (b *Backend) ByteAt(offset int64) byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= int64(len(b.data)) {
		return 0
	}
	return b.data[offset]
}

// ReadCount returns the number of ReadAt calls so far.
func (b *Backend) ReadCount() int64 { return b.readCount.Load() }

// WriteCount returns the number of WriteAt calls so far.
func (b *Backend) WriteCount() int64 { return b.writeCount.Load() }

// FlushCount returns the number of Flush calls so far.
func (b *Backend) FlushCount() int64 { return b.flushCount.Load() }

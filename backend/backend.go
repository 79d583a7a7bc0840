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

// Package backend defines the raw byte source/sink underlying a page
// cache, plus a file-backed implementation.
package backend

import (
	"context"
	"errors"
	"io"
)

// Backend is a byte-addressable store. Offsets are byte offsets with no
// alignment requirement. Implementations must be safe for concurrent
// use.
type Backend interface {
	// ReadAt reads into p starting at the given offset. Short reads are
	// permitted; io.EOF reports the end of the store.
	ReadAt(ctx context.Context, p []byte, offset int64) (n int, err error)

	// WriteAt writes p starting at the given offset, extending the
	// store if needed. Short writes are permitted.
	WriteAt(ctx context.Context, p []byte, offset int64) (n int, err error)

	// Size returns the store's current length in bytes.
	Size(ctx context.Context) (int64, error)

	// Flush durably persists previously written bytes.
	Flush(ctx context.Context) error
}

// ReadFull reads into p until it is full or the store ends, returning
// the number of bytes read. Unlike io.ReadFull, running out of store is
// not an error.
func ReadFull(ctx context.Context, b Backend, p []byte, offset int64) (int, error) {
	read := 0
	for read < len(p) {
		n, err := b.ReadAt(ctx, p[read:], offset+int64(read))
		read += n
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// WriteAll writes all of p, looping over short writes.
func WriteAll(ctx context.Context, b Backend, p []byte, offset int64) error {
	written := 0
	for written < len(p) {
		n, err := b.WriteAt(ctx, p[written:], offset+int64(written))
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		written += n
	}
	return nil
}

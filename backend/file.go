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

package backend

import (
	"context"
	"fmt"
	"os"
)

// FileBackend is a Backend over a local file, the stand-in for a block
// device partition.
type FileBackend struct {
	f *os.File
}

// OpenFile opens (creating if absent) the named file as a backend.
func OpenFile(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening backend file: %w", err)
	}
	return &FileBackend{f: f}, nil
}

// NewFileBackend wraps an already-open file. The backend takes
// ownership; Close closes the file.
func NewFileBackend(f *os.File) *FileBackend {
	return &FileBackend{f: f}
}

func (b *FileBackend) ReadAt(_ context.Context, p []byte, offset int64) (int, error) {
	return b.f.ReadAt(p, offset)
}

func (b *FileBackend) WriteAt(_ context.Context, p []byte, offset int64) (int, error) {
	return b.f.WriteAt(p, offset)
}

func (b *FileBackend) Size(_ context.Context) (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("statting backend file: %w", err)
	}
	return fi.Size(), nil
}

func (b *FileBackend) Flush(_ context.Context) error {
	return b.f.Sync()
}

func (b *FileBackend) Close() error {
	return b.f.Close()
}

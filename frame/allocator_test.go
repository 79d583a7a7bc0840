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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocator_InvalidCapacity(t *testing.T) {
	tests := []struct {
		name      string
		maxFrames int64
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAllocator(tc.maxFrames)

			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

func TestAllocator_ExhaustionReturnsErrNoMemory(t *testing.T) {
	a, err := NewAllocator(2)
	require.NoError(t, err)

	f1, err := a.Allocate()
	require.NoError(t, err)
	f2, err := a.Allocate()
	require.NoError(t, err)

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ErrNoMemory)

	// Releasing restores capacity.
	f1.Release()
	f3, err := a.Allocate()
	require.NoError(t, err)
	f3.Release()
	f2.Release()
}

func TestAllocator_Stats(t *testing.T) {
	a, err := NewAllocator(4)
	require.NoError(t, err)

	f, err := a.Allocate()
	require.NoError(t, err)

	s := a.Stats()
	assert.Equal(t, int64(4), s.MaxFrames)
	assert.Equal(t, int64(1), s.Outstanding)

	f.Release()
	s = a.Stats()
	assert.Equal(t, int64(0), s.Outstanding)
	assert.Equal(t, int64(1), s.Pooled)
}

func TestAllocator_ConcurrentAllocateRelease(t *testing.T) {
	const workers = 8
	const iterations = 200
	a, err := NewAllocator(workers)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				f, err := a.Allocate()
				if err != nil {
					continue
				}
				f.Bytes()[0] = 0xFF
				f.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), a.Stats().Outstanding)
}

func TestDefaultAllocator(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	a, err := NewAllocator(8)
	require.NoError(t, err)
	SetDefault(a)

	assert.Same(t, a, Default())
}

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

package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnbounded_SendRecvOrder(t *testing.T) {
	u := NewUnbounded[int]()

	for i := 0; i < 100; i++ {
		assert.True(t, u.Send(i))
	}

	for i := 0; i < 100; i++ {
		v, ok := u.Recv()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, u.Len())
}

func TestUnbounded_SendAfterClose(t *testing.T) {
	u := NewUnbounded[int]()

	u.Close()

	assert.False(t, u.Send(1))
	assert.True(t, u.IsClosed())
	_, ok := u.Recv()
	assert.False(t, ok)
}

func TestUnbounded_DrainsAfterClose(t *testing.T) {
	u := NewUnbounded[int]()

	u.Send(1)
	u.Send(2)
	u.Close()

	v, ok := u.Recv()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = u.Recv()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = u.Recv()
	assert.False(t, ok)
}

func TestUnbounded_CloseIdempotent(t *testing.T) {
	u := NewUnbounded[int]()

	u.Close()
	assert.NotPanics(t, func() { u.Close() })
}

func TestUnbounded_RecvBlocksUntilSend(t *testing.T) {
	u := NewUnbounded[int]()
	var got int
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		got, _ = u.Recv()
	}()

	u.Send(42)
	wg.Wait()

	assert.Equal(t, 42, got)
}

func TestUnbounded_ConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100
	u := NewUnbounded[int]()
	var wg sync.WaitGroup

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				u.Send(i)
			}
		}()
	}
	wg.Wait()
	u.Close()

	count := 0
	for {
		_, ok := u.Recv()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

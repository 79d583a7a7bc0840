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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_PushPopOrder(t *testing.T) {
	var q Queue[int]

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, q.Pop())
	}
	assert.True(t, q.IsEmpty())
}

func TestQueue_EmptyPopPanics(t *testing.T) {
	var q Queue[string]

	assert.Panics(t, func() { q.Pop() })
}

func TestQueue_InterleavedPushPop(t *testing.T) {
	var q Queue[int]

	q.Push(1)
	q.Push(2)
	assert.Equal(t, 1, q.Pop())
	q.Push(3)
	assert.Equal(t, 2, q.Pop())
	assert.Equal(t, 3, q.Pop())
	assert.True(t, q.IsEmpty())

	// Reusable after draining.
	q.Push(4)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 4, q.Pop())
}

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

package pagecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernmem/pagecache/cfg"
	"github.com/kernmem/pagecache/frame"
)

func TestApply_InstallsDefaultAllocator(t *testing.T) {
	old := frame.Default()
	defer frame.SetDefault(old)

	c := cfg.DefaultConfig()
	c.FramePool.MaxFrames = 32

	require.NoError(t, Apply(c))

	assert.Equal(t, int64(32), frame.Default().Stats().MaxFrames)
}

func TestApply_RejectsInvalidConfig(t *testing.T) {
	c := cfg.DefaultConfig()
	c.FramePool.MaxFrames = 0

	assert.Error(t, Apply(c))
}

func TestPhysOptions_CarriesFlusherConfig(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Flusher.MaxBytesPerSec = 1 << 20
	c.Flusher.SyncInterval = cfg.Duration(time.Second)

	o := PhysOptions(c)

	assert.Equal(t, c.Flusher, o.Flusher)
	assert.Nil(t, o.Allocator)
}

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

package phys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/kernmem/pagecache/frame"
)

type FrameInfoTest struct {
	suite.Suite
	alloc *frame.Allocator
}

func TestFrameInfoTestSuite(t *testing.T) {
	suite.Run(t, new(FrameInfoTest))
}

func (t *FrameInfoTest) SetupTest() {
	var err error
	t.alloc, err = frame.NewAllocator(32)
	require.NoError(t.T(), err)
}

func (t *FrameInfoTest) newSharedInfo(contents []byte, validLen int64) *frameInfo {
	f, err := t.alloc.Allocate()
	require.NoError(t.T(), err)
	copy(f.Bytes(), contents)
	return &frameInfo{state: stateShared, frame: f, validLen: validLen}
}

////////////////////////////////////////////////////////////////////////
// Leaf resolution
////////////////////////////////////////////////////////////////////////

func (t *FrameInfoTest) TestLeafAbsentRead() {
	fi := &frameInfo{}

	f, validLen, err := fi.leaf(NoWrite, false, t.alloc)

	require.NoError(t.T(), err)
	assert.True(t.T(), frame.IsZero(f))
	assert.Equal(t.T(), int64(0), validLen)
	// The entry itself stays absent.
	assert.Equal(t.T(), stateAbsent, fi.state)
	assert.False(t.T(), fi.dirty)
	f.Release()
}

func (t *FrameInfoTest) TestLeafAbsentWriteMaterializes() {
	fi := &frameInfo{}

	f, validLen, err := fi.leaf(100, false, t.alloc)

	require.NoError(t.T(), err)
	assert.Equal(t.T(), int64(100), validLen)
	assert.Equal(t.T(), stateShared, fi.state)
	assert.True(t.T(), fi.dirty)
	assert.Same(t.T(), fi.frame, f)
	f.Release()
}

func (t *FrameInfoTest) TestLeafWriteRaisesValidLenMonotonically() {
	fi := t.newSharedInfo(nil, 50)

	_, validLen, err := fi.leaf(200, false, t.alloc)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), int64(200), validLen)

	// A smaller write never lowers it.
	f, validLen, err := fi.leaf(10, false, t.alloc)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), int64(200), validLen)
	assert.Equal(t.T(), int64(200), fi.validLen)
	f.Release()
}

func (t *FrameInfoTest) TestLeafPinCounts() {
	fi := t.newSharedInfo(nil, 0)

	for i := 1; i <= 3; i++ {
		f, _, err := fi.leaf(NoWrite, true, t.alloc)
		require.NoError(t.T(), err)
		assert.Equal(t.T(), int64(i), fi.pin)
		f.Release()
	}
}

func (t *FrameInfoTest) TestLeafReadDoesNotDirty() {
	fi := t.newSharedInfo(nil, 10)

	f, _, err := fi.leaf(NoWrite, false, t.alloc)

	require.NoError(t.T(), err)
	assert.False(t.T(), fi.dirty)
	f.Release()
}

////////////////////////////////////////////////////////////////////////
// Branch resolution
////////////////////////////////////////////////////////////////////////

func (t *FrameInfoTest) TestBranchSharedRead() {
	fi := t.newSharedInfo([]byte{0xAA}, 1)

	res, remove, err := fi.branch(NoWrite, false, true, t.alloc)

	require.NoError(t.T(), err)
	assert.False(t.T(), remove)
	require.Nil(t.T(), res.unique)
	assert.Same(t.T(), fi.frame, res.frame)
	assert.Equal(t.T(), stateShared, fi.state)
	res.frame.Release()
}

func (t *FrameInfoTest) TestBranchSharedWriteWithoutCow() {
	fi := t.newSharedInfo([]byte{0xAA}, 1)

	res, remove, err := fi.branch(300, false, false, t.alloc)

	require.NoError(t.T(), err)
	assert.False(t.T(), remove)
	require.Nil(t.T(), res.unique)
	assert.Same(t.T(), fi.frame, res.frame)
	assert.Equal(t.T(), int64(300), res.validLen)
	res.frame.Release()
}

func (t *FrameInfoTest) TestBranchSharedWriteWithCowForks() {
	fi := t.newSharedInfo([]byte{0xAA, 0xBB}, 2)
	original := fi.frame

	res, remove, err := fi.branch(1, false, true, t.alloc)

	require.NoError(t.T(), err)
	assert.False(t.T(), remove)
	require.NotNil(t.T(), res.unique)

	// The writer receives a private copy of the bytes.
	assert.NotEqual(t.T(), original.Base(), res.unique.frame.Base())
	assert.Equal(t.T(), byte(0xAA), res.unique.frame.Bytes()[0])
	assert.Equal(t.T(), byte(0xBB), res.unique.frame.Bytes()[1])
	assert.Equal(t.T(), int64(2), res.unique.validLen)

	// The branch keeps the original as the unique tombstone.
	assert.Equal(t.T(), stateUnique, fi.state)
	assert.Same(t.T(), original, fi.frame)
	res.unique.frame.Release()
}

func (t *FrameInfoTest) TestBranchUniqueHandoverCarriesPin() {
	fi := t.newSharedInfo(nil, 25)
	fi.state = stateUnique
	fi.pin = 2
	original := fi.frame

	res, remove, err := fi.branch(NoWrite, false, true, t.alloc)

	require.NoError(t.T(), err)
	assert.True(t.T(), remove)
	require.NotNil(t.T(), res.unique)
	assert.Same(t.T(), original, res.unique.frame)
	assert.Equal(t.T(), stateShared, res.unique.state)
	assert.Equal(t.T(), int64(25), res.unique.validLen)
	assert.Equal(t.T(), int64(2), res.unique.pin)
	res.unique.frame.Release()
}

func (t *FrameInfoTest) TestBranchAbsentFails() {
	fi := &frameInfo{}

	_, _, err := fi.branch(NoWrite, false, true, t.alloc)

	assert.ErrorIs(t.T(), err, ErrAbsentPage)
}

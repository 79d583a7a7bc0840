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

import "sync"

var (
	zeroFrame *Frame
	zeroOnce  sync.Once
)

// Zero returns the process-wide canonical zero frame. It satisfies
// read-only commits of absent pages without an allocation.
//
// Its bytes must never be written.
func Zero() *Frame {
	zeroOnce.Do(func() {
		zeroFrame = &Frame{data: make([]byte, PageSize)}
		// One permanent reference so Release never frees it.
		zeroFrame.refs.Store(1)
	})
	return zeroFrame
}

// IsZero reports whether f is the canonical zero frame.
func IsZero(f *Frame) bool {
	return f == Zero()
}

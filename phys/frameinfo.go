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
	"github.com/kernmem/pagecache/frame"
)

// pageState describes who owns a page's frame relative to descendants.
type pageState int8

const (
	// stateAbsent: no frame. Only reachable transiently; a branch entry
	// in this state is a logic error.
	stateAbsent pageState = iota

	// stateShared: the frame may also be handed to descendants
	// read-only; a cow write through a descendant must copy.
	stateShared

	// stateUnique: a descendant forked this page; the frame is retained
	// only so the next taker receives it and later commits don't
	// re-serve it to a new sibling.
	stateUnique
)

// frameInfo is the per-page record in a Phys page table.
//
// The page table holds one frame reference per non-absent entry.
type frameInfo struct {
	state pageState
	frame *frame.Frame // nil iff state == stateAbsent

	// validLen is the count of backing-meaningful bytes in the page.
	// It never decreases.
	//
	// INVARIANT: 0 <= validLen <= frame.PageSize
	validLen int64

	// dirty is set by any write resolved through this entry and taken
	// by a flush.
	dirty bool

	// pin counts holders that need the frame identity to stay put.
	//
	// INVARIANT: pin >= 0
	pin int64
}

// commitResult is the outcome of resolving one page.
//
// Exactly one of the two shapes is populated: a shared frame to use in
// place (frame carries a reference owned by the receiver), or a private
// frameInfo the caller must install in its own page table (unique
// carries the table reference).
type commitResult struct {
	frame    *frame.Frame
	validLen int64

	unique *frameInfo
}

// leaf resolves a page hit on a non-branch Phys. write < 0 means a
// read. Returns the frame (with a reference for the caller) and the
// valid length.
func (fi *frameInfo) leaf(write int64, pin bool, alloc *frame.Allocator) (*frame.Frame, int64, error) {
	fi.dirty = fi.dirty || write >= 0
	if pin {
		fi.pin++
	}

	if fi.state != stateAbsent {
		if write >= 0 && write > fi.validLen {
			fi.validLen = write
		}
		fi.frame.IncRef()
		return fi.frame, fi.validLen, nil
	}

	if write < 0 {
		z := frame.Zero()
		z.IncRef()
		return z, 0, nil
	}

	f, err := alloc.Allocate()
	if err != nil {
		return nil, 0, err
	}
	fi.state = stateShared
	fi.frame = f
	fi.validLen = write
	f.IncRef()
	return f, write, nil
}

// branch resolves a page hit on a branch (interior) Phys. The second
// result asks the caller to remove the entry from the branch table.
func (fi *frameInfo) branch(write int64, pin bool, cow bool, alloc *frame.Allocator) (commitResult, bool, error) {
	switch fi.state {
	case stateShared:
		switch {
		case write < 0, !cow:
			if write >= 0 && write > fi.validLen {
				fi.validLen = write
			}
			if pin {
				fi.pin++
			}
			fi.frame.IncRef()
			return commitResult{frame: fi.frame, validLen: fi.validLen}, false, nil

		default:
			// Fork: the writer gets a private copy; the original stays
			// behind as the unique tombstone for the next taker.
			newLen := fi.validLen
			if write > newLen {
				newLen = write
			}
			copied, err := fi.frame.Copy(alloc, int(newLen))
			if err != nil {
				return commitResult{}, false, err
			}
			fi.state = stateUnique
			fi.validLen = newLen
			return commitResult{unique: &frameInfo{
				state:    stateShared,
				frame:    copied,
				validLen: newLen,
			}}, false, nil
		}

	case stateUnique:
		// Surrender the frame to the caller; the pin count carries
		// across. The entry's table reference moves with it.
		handover := &frameInfo{
			state:    stateShared,
			frame:    fi.frame,
			validLen: fi.validLen,
			pin:      fi.pin,
		}
		return commitResult{unique: handover}, true, nil

	default:
		return commitResult{}, false, ErrAbsentPage
	}
}

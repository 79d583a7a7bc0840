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
	"context"

	"github.com/kernmem/pagecache/backend"
	"github.com/kernmem/pagecache/frame"
)

// parent is the layer a Phys falls through to on a page-table miss:
// another Phys (through an optional page window) or a raw backend.
type parent interface {
	// streamLen returns the byte length visible through this link.
	streamLen(ctx context.Context) (int64, error)
}

// physParent is a window onto another Phys. start is a page-index
// offset applied on every lookup; when bounded, the window covers
// parent pages [start, end).
type physParent struct {
	phys   *Phys
	start  int64
	end    int64
	hasEnd bool
}

func (p *physParent) streamLen(ctx context.Context) (int64, error) {
	n, err := p.phys.StreamLen(ctx)
	if err != nil {
		return 0, err
	}
	n -= p.start << frame.PageShift
	if n < 0 {
		n = 0
	}
	return n, nil
}

// contains reports whether the child page index falls inside the
// window.
func (p *physParent) contains(index int64) bool {
	return !p.hasEnd || (index >= 0 && index < p.end-p.start)
}

// backendParent is the bottom of a parent chain: a raw byte store.
type backendParent struct {
	io backend.Backend
}

func (p *backendParent) streamLen(ctx context.Context) (int64, error) {
	return p.io.Size(ctx)
}

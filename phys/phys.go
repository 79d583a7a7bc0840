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

// Package phys implements sparse, page-indexed byte containers layered
// over byte backends. A Phys produces pages on demand, shares them
// read-only across clones, forks them copy-on-write, pins them for the
// VM layer, and ships dirty pages to an asynchronous flush worker.
package phys

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jacobsa/syncutil"
	"go.opentelemetry.io/otel"

	"github.com/kernmem/pagecache/backend"
	"github.com/kernmem/pagecache/cfg"
	"github.com/kernmem/pagecache/clock"
	"github.com/kernmem/pagecache/frame"
	"github.com/kernmem/pagecache/internal/logger"
	"github.com/kernmem/pagecache/internal/monitor"
)

var (
	// ErrInvalidOffset is returned for offsets that are negative or
	// overflow when combined with a length.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrAbsentPage reports a branch lookup on an absent entry. A branch
	// only contains pages it once owned, so seeing this is a logic bug
	// in the caller's page bookkeeping.
	ErrAbsentPage = errors.New("page absent from branch")
)

// NoWrite passed as the write argument of Commit marks a read-only
// commit.
const NoWrite int64 = -1

// NoLimit passed as the count argument of CloneAs leaves the clone's
// window unbounded.
const NoLimit int64 = -1

var tracer = otel.Tracer("github.com/kernmem/pagecache/phys")

// Phys is a sparse, page-indexed byte container. Pages come from the
// local page table first, then from the parent chain (another Phys or
// a backend), and are materialized as zero frames on a total miss with
// write intent.
//
// Methods are safe for concurrent use. The page-table lock is never
// held across backend I/O.
type Phys struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	// isBranch marks an interior snapshot created by CloneAs, reachable
	// only via parent links.
	isBranch bool

	// cow marks this Phys copy-on-write relative to its parent chain.
	cow bool

	id        string
	allocator *frame.Allocator

	// flusher is the sending half of the writeback channel. Only cow
	// leaves carry one.
	flusher *flusher

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	parent parent

	// GUARDED_BY(mu)
	pages map[int64]*frameInfo

	// Seek cursor for the streaming façade.
	pos atomic.Int64

	// refs counts the holders keeping this Phys reachable: the user
	// handle for a leaf, child links for a branch. Flush walks ascend
	// only through a parent with exactly one holder.
	refs atomic.Int64

	destroyed atomic.Bool
}

// Options configures a Phys beyond the required arguments.
type Options struct {
	// Allocator supplies frames. Nil means frame.Default().
	Allocator *frame.Allocator

	// Flusher tunes the writeback worker.
	Flusher cfg.FlusherConfig

	// Clock drives the worker's periodic sync. Nil means the system
	// clock.
	Clock clock.Clock
}

// New creates a Phys over a backend together with its flush worker.
// The worker does nothing until its Run method is called; it exits once
// the Phys chain is destroyed.
func New(b backend.Backend, initialPos int64, cow bool) (*Phys, *FlushWorker) {
	return NewWithOptions(b, initialPos, cow, Options{})
}

// NewWithOptions is New with explicit dependencies.
func NewWithOptions(b backend.Backend, initialPos int64, cow bool, o Options) (*Phys, *FlushWorker) {
	alloc := o.Allocator
	if alloc == nil {
		alloc = frame.Default()
	}

	queue := newFlushQueue()
	var fl *flusher
	if cow {
		fl = newFlusher(queue)
	} else {
		// No sender will ever exist; let the worker exit immediately.
		queue.Close()
	}

	p := &Phys{
		cow:       cow,
		id:        shortID(),
		allocator: alloc,
		flusher:   fl,
		parent:    &backendParent{io: b},
		pages:     make(map[int64]*frameInfo),
	}
	p.pos.Store(initialPos)
	p.refs.Store(1)
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)

	return p, newFlushWorker(queue, b, o)
}

// NewAnon creates a Phys with no parent: reads of uncommitted pages
// see zeros and writes materialize fresh frames. It has no flusher.
func NewAnon(cow bool) *Phys {
	return NewAnonWithOptions(cow, Options{})
}

// NewAnonWithOptions is NewAnon with explicit dependencies.
func NewAnonWithOptions(cow bool, o Options) *Phys {
	alloc := o.Allocator
	if alloc == nil {
		alloc = frame.Default()
	}

	p := &Phys{
		cow:       cow,
		id:        shortID(),
		allocator: alloc,
		pages:     make(map[int64]*frameInfo),
	}
	p.refs.Store(1)
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)
	return p
}

func shortID() string {
	return uuid.NewString()[:8]
}

// IsCOW reports whether writes diverge from the parent chain.
func (p *Phys) IsCOW() bool {
	return p.cow
}

////////////////////////////////////////////////////////////////////////
// Cloning
////////////////////////////////////////////////////////////////////////

// CloneAs atomically pushes the current contents down into a new
// branch and returns a fresh leaf viewing that branch through a window
// starting indexOffset pages in. count bounds the window in pages;
// NoLimit leaves it unbounded.
//
// After the call, the receiver and the returned leaf share the frozen
// snapshot and diverge on writes according to their cow flags.
func (p *Phys) CloneAs(cow bool, indexOffset int64, count int64) *Phys {
	p.mu.Lock()

	branch := &Phys{
		isBranch:  true,
		id:        shortID(),
		allocator: p.allocator,
		parent:    p.parent,
		pages:     p.pages,
	}
	// Reachable from the receiver and from the new leaf.
	branch.refs.Store(2)
	branch.mu = syncutil.NewInvariantMutex(branch.checkInvariants)

	p.parent = &physParent{phys: branch}
	p.pages = make(map[int64]*frameInfo)

	p.mu.Unlock()

	child := &Phys{
		cow:       cow,
		id:        shortID(),
		allocator: p.allocator,
		pages:     make(map[int64]*frameInfo),
		parent: &physParent{
			phys:   branch,
			start:  indexOffset,
			end:    indexOffset + count,
			hasEnd: count >= 0,
		},
	}
	if p.flusher != nil && cow {
		child.flusher = p.flusher.clone(indexOffset)
	}
	child.refs.Store(1)
	child.mu = syncutil.NewInvariantMutex(child.checkInvariants)

	logger.Tracef("phys %s: cloned as %s (cow=%t offset=%d count=%d) via branch %s",
		p.id, child.id, cow, indexOffset, count, branch.id)
	return child
}

////////////////////////////////////////////////////////////////////////
// Commit
////////////////////////////////////////////////////////////////////////

// Commit resolves a page index to a concrete frame, consulting the
// local page table, then the parent chain, then materializing a zero
// frame on a total miss with write intent.
//
// write is the new count of meaningful bytes within the page for a
// write, or NoWrite for a read. pin asks the page to keep its frame
// identity until a matching FlushPage with unpin.
//
// The returned frame carries a reference the caller must release.
func (p *Phys) Commit(ctx context.Context, index int64, write int64, pin bool) (*frame.Frame, int64, error) {
	if p.isBranch {
		panic("Commit called on a branch")
	}
	if index < 0 {
		return nil, 0, fmt.Errorf("committing page %d: %w", index, ErrInvalidOffset)
	}
	if write > frame.PageSize {
		return nil, 0, fmt.Errorf("committing page %d with write length %d: %w", index, write, ErrInvalidOffset)
	}

	ctx, span := tracer.Start(ctx, "Commit")
	defer span.End()

	logger.Tracef("phys %s: commit index=%d write=%d pin=%t cow=%t", p.id, index, write, pin, p.cow)
	res, err := p.commitImpl(ctx, index, write, pin, p.cow)
	if err != nil {
		return nil, 0, err
	}
	if res.unique != nil {
		panic("unique commit escaped to a leaf caller")
	}
	return res.frame, res.validLen, nil
}

func (p *Phys) commitImpl(ctx context.Context, index int64, write int64, pin bool, cow bool) (commitResult, error) {
	cow = cow || p.cow

	// Fast path: the page is already local.
	p.mu.Lock()
	if fi, ok := p.pages[index]; ok {
		res, err := p.resolveLocked(index, fi, write, pin, cow)
		p.mu.Unlock()
		monitor.PageCommitted(ctx, "hit")
		return res, err
	}
	par := p.parent
	p.mu.Unlock()

	switch par := par.(type) {
	case *physParent:
		if par.contains(index) {
			res, err := par.phys.commitImpl(ctx, par.start+index, write, pin, cow)
			if err != nil || res.unique == nil {
				return res, err
			}
			monitor.PageCommitted(ctx, "parent")
			return p.installAndResolve(index, res.unique, write, pin, cow)
		}
		// Outside a fixed window the parent is out of the picture.

	case *backendParent:
		f, err := p.allocator.Allocate()
		if err != nil {
			return commitResult{}, fmt.Errorf("filling page %d: %w", index, err)
		}
		n, err := backend.ReadFull(ctx, par.io, f.Bytes(), index<<frame.PageShift)
		if err != nil {
			f.Release()
			return commitResult{}, fmt.Errorf("filling page %d: %w", index, err)
		}
		monitor.PageCommitted(ctx, "backend")
		return p.installAndResolve(index, &frameInfo{
			state:    stateShared,
			frame:    f,
			validLen: int64(n),
		}, write, pin, cow)
	}

	// No parent (or outside the window): reads see the canonical zero
	// frame; writes materialize a fresh one.
	if write < 0 {
		z := frame.Zero()
		z.IncRef()
		monitor.PageCommitted(ctx, "zero")
		return commitResult{frame: z, validLen: 0}, nil
	}

	f, err := p.allocator.Allocate()
	if err != nil {
		return commitResult{}, fmt.Errorf("materializing page %d: %w", index, err)
	}
	monitor.PageCommitted(ctx, "new")
	return p.installAndResolve(index, &frameInfo{
		state:    stateShared,
		frame:    f,
		validLen: write,
	}, write, pin, cow)
}

// installAndResolve installs a page fetched outside the lock, then
// resolves it through the leaf/branch state machine so write length and
// pin apply exactly once. If another task installed the page while the
// lock was dropped, the incoming frame is discarded in its favor.
func (p *Phys) installAndResolve(index int64, fi *frameInfo, write int64, pin bool, cow bool) (commitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.pages[index]; ok {
		if fi.state != stateAbsent {
			fi.frame.Release()
		}
		return p.resolveLocked(index, existing, write, pin, cow)
	}
	p.pages[index] = fi
	return p.resolveLocked(index, fi, write, pin, cow)
}

// resolveLocked applies the state machine to an installed entry.
//
// LOCKS_REQUIRED(p.mu)
func (p *Phys) resolveLocked(index int64, fi *frameInfo, write int64, pin bool, cow bool) (commitResult, error) {
	if p.isBranch {
		res, remove, err := fi.branch(write, pin, cow, p.allocator)
		if remove {
			delete(p.pages, index)
		}
		return res, err
	}

	f, validLen, err := fi.leaf(write, pin, p.allocator)
	if err != nil {
		return commitResult{}, err
	}
	return commitResult{frame: f, validLen: validLen}, nil
}

////////////////////////////////////////////////////////////////////////
// Flushing
////////////////////////////////////////////////////////////////////////

// DirtyOverride controls the dirty decision during FlushPage.
type DirtyOverride int

const (
	// DirtyDefault uses (and clears) the page's dirty bit.
	DirtyDefault DirtyOverride = iota

	// DirtyForce enqueues the page even if clean.
	DirtyForce

	// DirtyClean clears the dirty bit without enqueueing. Combined with
	// unpin this releases a page without writeback.
	DirtyClean
)

// FlushPage walks the parent chain and enqueues the first dirty
// occurrence of the page for writeback. unpin drops one pin at every
// visited level.
//
// Flushing is best effort and advisory: enqueue failures are not
// reported. The walk stops at any branch that is still shared, which
// can delay writeback of cow-retained dirty pages until the sibling
// goes away.
func (p *Phys) FlushPage(ctx context.Context, index int64, override DirtyOverride, unpin bool) error {
	fl := p.flusher
	if fl == nil {
		return nil
	}
	_, span := tracer.Start(ctx, "FlushPage")
	defer span.End()

	offset := fl.offset
	this := p
	for {
		var data flushData
		var haveData bool

		this.mu.Lock()
		if fi, ok := this.pages[index]; ok {
			if unpin {
				if fi.pin > 0 {
					fi.pin--
				} else {
					logger.Warnf("phys %s: pin underflow at page %d", this.id, index)
				}
			}

			dirty := fi.dirty
			fi.dirty = false
			switch override {
			case DirtyForce:
				dirty = true
			case DirtyClean:
				dirty = false
			}

			if dirty && fi.state != stateAbsent {
				fi.frame.IncRef()
				data = flushData{index: index + offset, frame: fi.frame, validLen: fi.validLen}
				haveData = true
			}
		}
		par := this.parent
		this.mu.Unlock()

		if haveData {
			if !fl.queue.Send([]flushData{data}) {
				data.frame.Release()
			}
			return nil
		}

		pp, ok := par.(*physParent)
		if !ok {
			return nil
		}
		if pp.phys.refs.Load() > 1 {
			// Another holder may still need the dirty bit.
			return nil
		}
		next := pp.start + index
		if pp.hasEnd && next >= pp.end {
			return nil
		}

		offset -= pp.start
		index = next
		this = pp.phys
	}
}

// FlushAll enqueues every dirty page at every exclusively reachable
// level of the parent chain. Best effort; never returns an error from
// the writeback itself.
func (p *Phys) FlushAll(ctx context.Context) error {
	fl := p.flusher
	if fl == nil {
		return nil
	}
	_, span := tracer.Start(ctx, "FlushAll")
	defer span.End()

	offset := fl.offset
	this := p
	for {
		this.mu.Lock()
		batch := this.takeDirtyLocked(offset)
		par := this.parent
		this.mu.Unlock()

		if !fl.queue.Send(batch) {
			releaseBatch(batch)
		}

		pp, ok := par.(*physParent)
		if !ok {
			return nil
		}
		if pp.phys.refs.Load() > 1 {
			return nil
		}

		offset -= pp.start
		this = pp.phys
	}
}

// takeDirtyLocked clears every dirty bit and returns the pages that
// were dirty, each holding a queue reference.
//
// LOCKS_REQUIRED(p.mu)
func (p *Phys) takeDirtyLocked(offset int64) []flushData {
	var batch []flushData
	for index, fi := range p.pages {
		if !fi.dirty {
			continue
		}
		fi.dirty = false
		if fi.state == stateAbsent {
			continue
		}
		fi.frame.IncRef()
		batch = append(batch, flushData{index: index + offset, frame: fi.frame, validLen: fi.validLen})
	}
	return batch
}

func releaseBatch(batch []flushData) {
	for _, d := range batch {
		d.frame.Release()
	}
}

////////////////////////////////////////////////////////////////////////
// Teardown
////////////////////////////////////////////////////////////////////////

// Destroy releases the Phys: remaining dirty pages are handed to the
// flusher on a best-effort basis up the exclusively reachable chain,
// page-table references are dropped, and orphaned branches are torn
// down recursively. Destroy never blocks on I/O and never fails.
// Idempotent; the Phys must not be used afterwards.
func (p *Phys) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}

	fl := p.flusher
	var offset int64
	if fl != nil {
		offset = fl.offset
	}

	this := p
	for {
		this.mu.Lock()
		if fl != nil && !fl.queue.IsClosed() {
			batch := this.takeDirtyLocked(offset)
			if !fl.queue.Send(batch) {
				releaseBatch(batch)
			}
		}
		for _, fi := range this.pages {
			if fi.state != stateAbsent {
				fi.frame.Release()
			}
		}
		this.pages = make(map[int64]*frameInfo)
		par := this.parent
		this.parent = nil
		this.mu.Unlock()

		pp, ok := par.(*physParent)
		if !ok {
			break
		}
		if pp.phys.refs.Add(-1) > 0 {
			break
		}

		offset -= pp.start
		this = pp.phys
	}

	if fl != nil {
		fl.close()
	}
}

////////////////////////////////////////////////////////////////////////
// Invariants
////////////////////////////////////////////////////////////////////////

func (p *Phys) checkInvariants() {
	for index, fi := range p.pages {
		if fi.validLen < 0 || fi.validLen > frame.PageSize {
			panic(fmt.Sprintf("page %d: valid length %d out of range", index, fi.validLen))
		}
		if fi.pin < 0 {
			panic(fmt.Sprintf("page %d: negative pin count %d", index, fi.pin))
		}
		if fi.state != stateAbsent && fi.frame == nil {
			panic(fmt.Sprintf("page %d: populated state with no frame", index))
		}
		if p.isBranch && fi.state == stateAbsent {
			panic(fmt.Sprintf("page %d: absent entry in a branch", index))
		}
	}
}

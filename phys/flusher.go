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
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kernmem/pagecache/backend"
	"github.com/kernmem/pagecache/clock"
	"github.com/kernmem/pagecache/common"
	"github.com/kernmem/pagecache/frame"
	"github.com/kernmem/pagecache/internal/logger"
	"github.com/kernmem/pagecache/internal/monitor"
)

// flushData is one dirty page bound for the backend. The frame carries
// a reference owned by the queue, released after writeback.
type flushData struct {
	index    int64
	frame    *frame.Frame
	validLen int64
}

func newFlushQueue() *common.Unbounded[[]flushData] {
	return common.NewUnbounded[[]flushData]()
}

// flusher is the sending half of the writeback channel, shared down a
// cow Phys chain. offset accumulates window shifts so enqueued indexes
// are in backend page coordinates.
type flusher struct {
	queue   *common.Unbounded[[]flushData]
	senders *atomic.Int64
	offset  int64
}

func newFlusher(queue *common.Unbounded[[]flushData]) *flusher {
	senders := &atomic.Int64{}
	senders.Store(1)
	return &flusher{queue: queue, senders: senders}
}

// clone registers another sender shifted by the given page offset.
func (f *flusher) clone(extraOffset int64) *flusher {
	f.senders.Add(1)
	return &flusher{
		queue:   f.queue,
		senders: f.senders,
		offset:  f.offset + extraOffset,
	}
}

// close drops this sender; the last one closes the queue, which lets
// the worker drain and exit.
func (f *flusher) close() {
	if f.senders.Add(-1) == 0 {
		f.queue.Close()
	}
}

// FlushWorker drains dirty pages from a Phys chain and writes them
// through the backend. Run it on its own goroutine; it exits when the
// owning Phys chain has been destroyed and the queue has drained.
type FlushWorker struct {
	queue   *common.Unbounded[[]flushData]
	backend backend.Backend

	// limiter caps writeback bandwidth. Nil means unlimited.
	limiter *rate.Limiter

	clock        clock.Clock
	syncInterval time.Duration

	done chan struct{}
}

func newFlushWorker(queue *common.Unbounded[[]flushData], b backend.Backend, o Options) *FlushWorker {
	var limiter *rate.Limiter
	if bps := o.Flusher.MaxBytesPerSec; bps > 0 {
		burst := int(bps)
		if burst < frame.PageSize {
			burst = frame.PageSize
		}
		limiter = rate.NewLimiter(rate.Limit(bps), burst)
	}

	c := o.Clock
	if c == nil {
		c = clock.RealClock{}
	}

	return &FlushWorker{
		queue:        queue,
		backend:      b,
		limiter:      limiter,
		clock:        c,
		syncInterval: o.Flusher.SyncInterval.AsDuration(),
		done:         make(chan struct{}),
	}
}

// Run consumes flush batches until the queue is closed and drained.
// Write errors are logged and swallowed; writeback is best effort.
func (w *FlushWorker) Run(ctx context.Context) {
	defer close(w.done)

	if w.syncInterval > 0 {
		go w.periodicSync(ctx)
	}

	for {
		batch, ok := w.queue.Recv()
		if !ok {
			return
		}
		w.writeBack(ctx, batch)
	}
}

// Done is closed once Run has exited, i.e. all writeback accepted
// before destruction has been attempted.
func (w *FlushWorker) Done() <-chan struct{} {
	return w.done
}

func (w *FlushWorker) writeBack(ctx context.Context, batch []flushData) {
	for _, d := range batch {
		if w.limiter != nil {
			if err := w.limiter.WaitN(ctx, int(d.validLen)); err != nil {
				// Context gone; the write below is still attempted.
				logger.Warnf("flush worker: rate limiter: %v", err)
			}
		}

		err := backend.WriteAll(ctx, w.backend, d.frame.Bytes()[:d.validLen], d.index<<frame.PageShift)
		if err != nil {
			logger.Warnf("flush worker: writing page %d: %v", d.index, err)
			monitor.FlushError(ctx)
		} else {
			monitor.PagesFlushed(ctx, 1)
		}
		d.frame.Release()
	}

	if err := w.backend.Flush(ctx); err != nil {
		logger.Warnf("flush worker: backend flush: %v", err)
		monitor.FlushError(ctx)
	}
}

func (w *FlushWorker) periodicSync(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-w.clock.After(w.syncInterval):
			if err := w.backend.Flush(ctx); err != nil {
				logger.Warnf("flush worker: periodic sync: %v", err)
				monitor.FlushError(ctx)
			}
		}
	}
}

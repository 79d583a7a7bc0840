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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernmem/pagecache/backend/fake"
	"github.com/kernmem/pagecache/cfg"
	"github.com/kernmem/pagecache/clock"
)

func TestFlushWorker_BatchEndsWithBackendFlush(t *testing.T) {
	ctx := context.Background()
	b := fake.New(nil)
	p, w := New(b, 0, true)
	go w.Run(ctx)

	_, err := p.WriteAt(ctx, []byte{1}, 0)
	require.NoError(t, err)
	require.NoError(t, p.FlushAll(ctx))

	assert.Eventually(t, func() bool {
		return b.FlushCount() >= 1 && b.ByteAt(0) == 1
	}, time.Second, time.Millisecond)

	p.Destroy()
	<-w.Done()
}

func TestFlushWorker_PeriodicSync(t *testing.T) {
	ctx := context.Background()
	b := fake.New(nil)
	sc := clock.NewSimulatedClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	p, w := NewWithOptions(b, 0, true, Options{
		Clock: sc,
		Flusher: cfg.FlusherConfig{
			SyncInterval: cfg.Duration(time.Minute),
		},
	})
	go w.Run(ctx)
	defer func() {
		p.Destroy()
		<-w.Done()
	}()

	// Give the sync goroutine a moment to arm its timer, then fire it.
	assert.Eventually(t, func() bool {
		sc.AdvanceTime(time.Minute)
		return b.FlushCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestFlushWorker_RateLimitedWritebackStillCompletes(t *testing.T) {
	ctx := context.Background()
	b := fake.New(nil)
	p, w := NewWithOptions(b, 0, true, Options{
		Flusher: cfg.FlusherConfig{
			// Generous enough that the test stays fast; the point is
			// that the limited path is exercised.
			MaxBytesPerSec: 64 << 20,
		},
	})
	go w.Run(ctx)

	_, err := p.WriteAt(ctx, []byte{5, 6, 7}, 0)
	require.NoError(t, err)

	p.Destroy()
	<-w.Done()

	assert.Equal(t, byte(5), b.ByteAt(0))
	assert.Equal(t, byte(7), b.ByteAt(2))
}

func TestFlushWorker_ExitsWhenAllSendersGone(t *testing.T) {
	ctx := context.Background()
	b := fake.New(nil)
	p, w := New(b, 0, true)
	go w.Run(ctx)

	c := p.CloneAs(true, 0, NoLimit)

	// Both the original and the clone hold senders; the worker exits
	// only after the last one is destroyed.
	p.Destroy()
	select {
	case <-w.Done():
		t.Fatal("worker exited while a sender was still alive")
	case <-time.After(10 * time.Millisecond):
	}

	c.Destroy()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after the last sender was destroyed")
	}
}

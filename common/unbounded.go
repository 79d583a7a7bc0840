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

import "sync"

// Unbounded is a many-producer, single-consumer channel without a
// capacity limit: Send never blocks. Receive blocks until an item is
// available or the channel is closed and drained.
//
// A closed channel still yields items that were sent before Close.
type Unbounded[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    Queue[T] // GUARDED_BY(mu)
	closed   bool     // GUARDED_BY(mu)
}

// NewUnbounded creates an empty, open channel.
func NewUnbounded[T any]() *Unbounded[T] {
	u := &Unbounded[T]{}
	u.nonEmpty = sync.NewCond(&u.mu)
	return u
}

// Send enqueues an item. Returns false if the channel is closed, in
// which case the item is dropped.
func (u *Unbounded[T]) Send(value T) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return false
	}
	u.items.Push(value)
	u.nonEmpty.Signal()
	return true
}

// Recv dequeues the next item, blocking while the channel is open and
// empty. The second result is false once the channel is closed and all
// items have been drained.
func (u *Unbounded[T]) Recv() (T, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for u.items.IsEmpty() && !u.closed {
		u.nonEmpty.Wait()
	}
	if u.items.IsEmpty() {
		var zero T
		return zero, false
	}
	return u.items.Pop(), true
}

// Close marks the channel closed. Idempotent. Items already sent remain
// receivable.
func (u *Unbounded[T]) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.closed = true
	u.nonEmpty.Broadcast()
}

// IsClosed reports whether Close has been called.
func (u *Unbounded[T]) IsClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.closed
}

// Len returns the number of items currently queued.
func (u *Unbounded[T]) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.items.Len()
}

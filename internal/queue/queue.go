// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package queue

import "sync"

// minCapacity is the smallest capacity of the ring buffer.
// Must be a power of 2 for bitwise modulus: x % n == x & (n - 1).
const minCapacity = 16

// Unbounded is a thread-safe FIFO queue backed by a growable ring buffer.
// Push never blocks; Wait blocks until an item is available or the queue is closed.
type Unbounded[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	closed bool
}

// NewUnbounded creates an instance of Unbounded
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{items: make([]T, minCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds an item at the back of the queue.
// It returns false and drops the item when the queue is closed.
func (q *Unbounded[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if q.count == len(q.items) {
		q.resize(q.count << 1)
	}
	q.items[q.tail] = item
	q.tail = (q.tail + 1) & (len(q.items) - 1)
	q.count++
	q.cond.Signal()
	return true
}

// Pop removes the item at the front of the queue.
// It returns false when the queue is empty or closed.
func (q *Unbounded[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Wait removes the item at the front of the queue, blocking until one is pushed.
// It returns false once the queue is closed.
func (q *Unbounded[T]) Wait() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.popLocked()
}

// Close closes the queue, discards its items and wakes up every waiter.
func (q *Unbounded[T]) Close() {
	q.CloseRemaining()
}

// CloseRemaining closes the queue and returns the items it still held, in order.
func (q *Unbounded[T]) CloseRemaining() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}

	remaining := make([]T, 0, q.count)
	for q.count > 0 {
		item, _ := q.popLocked()
		remaining = append(remaining, item)
	}
	q.closed = true
	q.items = nil
	q.head, q.tail = 0, 0
	q.cond.Broadcast()
	return remaining
}

// IsClosed reports whether the queue is closed
func (q *Unbounded[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Unbounded[T]) popLocked() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) & (len(q.items) - 1)
	q.count--
	// shrink when the buffer is a quarter full
	if len(q.items) > minCapacity && q.count<<2 == len(q.items) {
		q.resize(q.count << 1)
	}
	return item, true
}

func (q *Unbounded[T]) resize(capacity int) {
	items := make([]T, capacity)
	if q.tail > q.head {
		copy(items, q.items[q.head:q.tail])
	} else if q.count > 0 {
		n := copy(items, q.items[q.head:])
		copy(items[n:], q.items[:q.tail])
	}
	q.head = 0
	q.tail = q.count
	q.items = items
}

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

package entity

import (
	"context"
	"errors"
	"sync"
	"time"
)

type dedupEntry struct {
	done     chan struct{}
	result   Try[any]
	expireAt time.Time
}

// deduplicator runs one operation per request key and hands its result to every
// retry of the same key arriving within the window.
type deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	entries   map[string]*dedupEntry
	lastSweep time.Time
}

func newDeduplicator(window time.Duration) *deduplicator {
	return &deduplicator{
		window:    window,
		entries:   make(map[string]*dedupEntry),
		lastSweep: time.Now(),
	}
}

func (d *deduplicator) do(ctx context.Context, key string, run func() Try[any]) Try[any] {
	for {
		d.mu.Lock()
		d.sweep(time.Now())
		entry, ok := d.entries[key]
		if !ok {
			break
		}
		d.mu.Unlock()

		select {
		case <-entry.done:
			// the first caller gave up: run again on behalf of this one
			if isCancellation(entry.result.Err()) && ctx.Err() == nil {
				continue
			}
			return entry.result
		case <-ctx.Done():
			return Failure[any](ctx.Err())
		}
	}

	entry := &dedupEntry{done: make(chan struct{})}
	d.entries[key] = entry
	d.mu.Unlock()

	result := run()

	d.mu.Lock()
	entry.result = result
	entry.expireAt = time.Now().Add(d.window)
	// a cancelled caller did not get an answer: let the retry run again
	if isCancellation(result.Err()) {
		delete(d.entries, key)
	}
	d.mu.Unlock()
	close(entry.done)
	return result
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sweep drops expired entries, at most every quarter of the window
func (d *deduplicator) sweep(now time.Time) {
	if now.Sub(d.lastSweep) < d.window/4 {
		return
	}
	d.lastSweep = now
	for key, entry := range d.entries {
		if !entry.expireAt.IsZero() && now.After(entry.expireAt) {
			delete(d.entries, key)
		}
	}
}

func (d *deduplicator) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

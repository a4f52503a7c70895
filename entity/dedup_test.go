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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestDeduplicator(t *testing.T) {
	t.Run("With concurrent duplicates", func(t *testing.T) {
		dedup := newDeduplicator(time.Minute)
		var runs atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		results := make([]Try[any], 10)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = dedup.do(context.Background(), "key", func() Try[any] {
					runs.Inc()
					<-release
					return Success[any]("done")
				})
			}()
		}

		require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
		close(release)
		wg.Wait()

		assert.EqualValues(t, 1, runs.Load())
		for _, result := range results {
			assert.Equal(t, "done", result.Value())
		}
	})
	t.Run("With a cancelled run", func(t *testing.T) {
		dedup := newDeduplicator(time.Minute)
		result := dedup.do(context.Background(), "key", func() Try[any] {
			return Failure[any](context.Canceled)
		})
		assert.ErrorIs(t, result.Err(), context.Canceled)
		assert.Zero(t, dedup.len())

		result = dedup.do(context.Background(), "key", func() Try[any] {
			return Success[any]("retried")
		})
		assert.Equal(t, "retried", result.Value())
	})
	t.Run("With a duplicate waiting on a cancelled run", func(t *testing.T) {
		dedup := newDeduplicator(time.Minute)
		release := make(chan struct{})
		started := make(chan struct{})
		first := make(chan Try[any], 1)
		go func() {
			first <- dedup.do(context.Background(), "key", func() Try[any] {
				close(started)
				<-release
				return Failure[any](context.Canceled)
			})
		}()
		<-started

		second := make(chan Try[any], 1)
		go func() {
			second <- dedup.do(context.Background(), "key", func() Try[any] {
				return Success[any]("second")
			})
		}()
		// let the duplicate reach the wait
		time.Sleep(20 * time.Millisecond)
		close(release)

		assert.ErrorIs(t, (<-first).Err(), context.Canceled)
		assert.Equal(t, "second", (<-second).Value())
		assert.Equal(t, 1, dedup.len())
	})
	t.Run("With an expired entry", func(t *testing.T) {
		dedup := newDeduplicator(20 * time.Millisecond)
		dedup.do(context.Background(), "key", func() Try[any] { return Success[any](1) })
		require.Equal(t, 1, dedup.len())

		time.Sleep(40 * time.Millisecond)
		result := dedup.do(context.Background(), "key", func() Try[any] { return Success[any](2) })
		assert.Equal(t, 2, result.Value())
	})
	t.Run("With a waiter giving up", func(t *testing.T) {
		dedup := newDeduplicator(time.Minute)
		release := make(chan struct{})
		started := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			dedup.do(context.Background(), "key", func() Try[any] {
				close(started)
				<-release
				return Success[any](1)
			})
		}()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		result := dedup.do(ctx, "key", func() Try[any] { return Success[any](2) })
		assert.ErrorIs(t, result.Err(), context.DeadlineExceeded)

		close(release)
		<-done
	})
}

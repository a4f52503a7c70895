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

package xsync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestMap(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	assert.False(t, m.SetIfAbsent("a", 2))
	assert.True(t, m.SetIfAbsent("b", 2))

	val, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, val)
	assert.Equal(t, 2, m.Len())
	assert.ElementsMatch(t, []int{1, 2}, m.Values())

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)

	m.Reset()
	assert.Zero(t, m.Len())
}

func TestShardedMap(t *testing.T) {
	t.Run("LoadOrCreate creates once under contention", func(t *testing.T) {
		m := NewShardedMap[*int]()
		var creations atomic.Int32
		var wg sync.WaitGroup
		results := make([]*int, 50)
		for i := range 50 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = m.LoadOrCreate("K/tenantA:agg-42", func() *int {
					creations.Inc()
					return new(int)
				})
			}(i)
		}
		wg.Wait()

		assert.EqualValues(t, 1, creations.Load())
		for _, r := range results {
			assert.Same(t, results[0], r)
		}
	})
	t.Run("DeleteIf only removes a matching value", func(t *testing.T) {
		m := NewShardedMap[int]()
		_, created := m.LoadOrCreate("key", func() int { return 7 })
		require.True(t, created)

		assert.False(t, m.DeleteIf("key", func(v int) bool { return v == 8 }))
		assert.True(t, m.DeleteIf("key", func(v int) bool { return v == 7 }))
		assert.False(t, m.DeleteIf("missing", func(int) bool { return true }))
		_, ok := m.Load("key")
		assert.False(t, ok)
	})
	t.Run("ReplaceIf swaps a matching value", func(t *testing.T) {
		m := NewShardedMap[int]()
		m.LoadOrCreate("key", func() int { return 1 })

		assert.False(t, m.ReplaceIf("key", func(v int) bool { return v == 2 }, 3))
		assert.True(t, m.ReplaceIf("key", func(v int) bool { return v == 1 }, 3))
		assert.False(t, m.ReplaceIf("missing", func(int) bool { return true }, 3))
		val, ok := m.Load("key")
		require.True(t, ok)
		assert.Equal(t, 3, val)
	})
	t.Run("Len Values and Delete", func(t *testing.T) {
		m := NewShardedMap[string]()
		for i := range 100 {
			key := fmt.Sprintf("tenant:%d", i)
			m.LoadOrCreate(key, func() string { return key })
		}
		assert.Equal(t, 100, m.Len())
		assert.Len(t, m.Values(), 100)
		m.Delete("tenant:1")
		assert.Equal(t, 99, m.Len())
	})
}

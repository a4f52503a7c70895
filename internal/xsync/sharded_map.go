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
	"runtime"
	"sync"

	"github.com/zeebo/xxh3"
)

const maxShards = 64

type shard[V any] struct {
	sync.RWMutex
	m map[string]V
}

// ShardedMap is a string-keyed concurrent map split across shards selected with xxh3,
// so that operations on unrelated keys rarely contend on the same lock.
type ShardedMap[V any] struct {
	shards []*shard[V]
}

// NewShardedMap creates an instance of ShardedMap
func NewShardedMap[V any]() *ShardedMap[V] {
	numShards := calculateNumShards()
	shards := make([]*shard[V], numShards)
	for i := range numShards {
		shards[i] = &shard[V]{m: make(map[string]V)}
	}
	return &ShardedMap[V]{shards: shards}
}

// Load returns the value of a given key
func (s *ShardedMap[V]) Load(key string) (V, bool) {
	sh := s.getShard(key)
	sh.RLock()
	val, ok := sh.m[key]
	sh.RUnlock()
	return val, ok
}

// LoadOrCreate returns the value stored under key. When absent, create is called
// while the shard lock is held and its result is stored, so concurrent callers
// always observe a single value per key.
func (s *ShardedMap[V]) LoadOrCreate(key string, create func() V) (value V, created bool) {
	sh := s.getShard(key)
	sh.RLock()
	val, ok := sh.m[key]
	sh.RUnlock()
	if ok {
		return val, false
	}

	sh.Lock()
	defer sh.Unlock()
	if val, ok = sh.m[key]; ok {
		return val, false
	}
	val = create()
	sh.m[key] = val
	return val, true
}

// DeleteIf removes the key only when cond returns true for the stored value.
func (s *ShardedMap[V]) DeleteIf(key string, cond func(V) bool) bool {
	sh := s.getShard(key)
	sh.Lock()
	defer sh.Unlock()
	val, ok := sh.m[key]
	if !ok || !cond(val) {
		return false
	}
	delete(sh.m, key)
	return true
}

// ReplaceIf stores value under key only when a value is present and cond returns true for it.
func (s *ShardedMap[V]) ReplaceIf(key string, cond func(V) bool, value V) bool {
	sh := s.getShard(key)
	sh.Lock()
	defer sh.Unlock()
	val, ok := sh.m[key]
	if !ok || !cond(val) {
		return false
	}
	sh.m[key] = value
	return true
}

// Delete removes a given key from the sharded map
func (s *ShardedMap[V]) Delete(key string) {
	sh := s.getShard(key)
	sh.Lock()
	delete(sh.m, key)
	sh.Unlock()
}

// Len returns the number of stored keys
func (s *ShardedMap[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.RLock()
		total += len(sh.m)
		sh.RUnlock()
	}
	return total
}

// Values returns a snapshot of the stored values
func (s *ShardedMap[V]) Values() []V {
	var out []V
	for _, sh := range s.shards {
		sh.RLock()
		for _, v := range sh.m {
			out = append(out, v)
		}
		sh.RUnlock()
	}
	return out
}

func (s *ShardedMap[V]) getShard(key string) *shard[V] {
	return s.shards[xxh3.HashString(key)%uint64(len(s.shards))]
}

func calculateNumShards() int {
	numCPU := runtime.NumCPU() * 2
	if numCPU > maxShards {
		return maxShards
	}
	return numCPU
}

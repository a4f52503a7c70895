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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/tenancy"
)

const kitchenKind = "kitchen"

var errOutOfIngredients = errors.New("out of ingredients")

// kitchen is the entity used across the tests
type kitchen struct {
	id          identity.ClusterIdentity
	ingredients int
	orders      []string

	// busy detects concurrent access to the same instance
	busy atomic.Bool
}

func (k *kitchen) PrepareOrder(order string) error {
	if !k.busy.CompareAndSwap(false, true) {
		panic("kitchen accessed concurrently")
	}
	defer k.busy.Store(false)

	if k.ingredients == 0 {
		return errOutOfIngredients
	}
	k.ingredients--
	k.orders = append(k.orders, order)
	return nil
}

func (k *kitchen) Snapshot() any {
	return len(k.orders)
}

// kitchenFactory counts constructions and can be told to fail
type kitchenFactory struct {
	ingredients   int
	constructions atomic.Int32
	failures      atomic.Int32
}

func (f *kitchenFactory) build(_ context.Context, _ tenancy.Services, id identity.ClusterIdentity) (*kitchen, error) {
	f.constructions.Inc()
	if f.failures.Load() > 0 {
		f.failures.Dec()
		return nil, errors.New("database unreachable")
	}
	return &kitchen{id: id, ingredients: f.ingredients}, nil
}

func newTestEngine(t *testing.T, factory Factory[*kitchen], opts ...Option) (*Engine, *Client[*kitchen]) {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, Register(registry, kitchenKind, factory))

	engine := NewEngine(registry, append([]Option{WithLogger(log.DiscardLogger)}, opts...)...)
	t.Cleanup(func() {
		assert.NoError(t, engine.Stop(context.Background()))
	})

	client, err := NewClient[*kitchen](engine)
	require.NoError(t, err)
	return engine, client
}

func prepare(order string) func(context.Context, *kitchen) error {
	return func(_ context.Context, k *kitchen) error {
		return k.PrepareOrder(order)
	}
}

// sink records what an entity publishes
type sink struct {
	mu        sync.Mutex
	items     []any
	completed chan error
}

func newSink() *sink {
	return &sink{completed: make(chan error, 1)}
}

func (s *sink) Deliver(item any) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
}

func (s *sink) Complete(err error) {
	s.completed <- err
}

func (s *sink) snapshot() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.items...)
}

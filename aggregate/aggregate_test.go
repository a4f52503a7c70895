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

package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/eskit/entity"
	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/tenancy"
)

var errOutOfIngredients = errors.New("out of ingredients")

type ingredientsDelivered struct {
	Amount int
}

type dishPrepared struct {
	Dish string
}

type kitchen struct {
	Root
	ingredients int
	dishes      []string
}

func (k *kitchen) On(event Event) {
	switch content := event.Content.(type) {
	case ingredientsDelivered:
		k.ingredients += content.Amount
	case dishPrepared:
		k.ingredients--
		k.dishes = append(k.dishes, content.Dish)
	}
}

func (k *kitchen) Deliver(amount int) {
	k.Apply("IngredientsDelivered", ingredientsDelivered{Amount: amount})
}

func (k *kitchen) Prepare(dish string) error {
	if k.ingredients == 0 {
		return errOutOfIngredients
	}
	k.Apply("DishPrepared", dishPrepared{Dish: dish})
	return nil
}

func newKitchen(context.Context, tenancy.Services, identity.ClusterIdentity) (*kitchen, error) {
	return new(kitchen), nil
}

func newTestAggregates(t *testing.T, store EventStore, opts ...entity.Option) *Aggregates[*kitchen] {
	t.Helper()
	engine := entity.NewEngine(entity.NewRegistry(), append([]entity.Option{entity.WithLogger(log.DiscardLogger)}, opts...)...)
	t.Cleanup(func() {
		assert.NoError(t, engine.Stop(context.Background()))
	})

	aggregates, err := Of(engine, "kitchen", store, newKitchen)
	require.NoError(t, err)
	return aggregates
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()

	t.Run("With committed events", func(t *testing.T) {
		store := NewMemoryEventStore()
		aggregates := newTestAggregates(t, store)
		assert.Equal(t, "kitchen", aggregates.Kind())

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			k.Deliver(2)
			return k.Prepare("soup")
		})
		require.True(t, result.IsSuccess())

		version, err := aggregates.Version(ctx, "tenantA", "kitchen-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, version)

		id, _ := identity.New("kitchen", "tenantA", "kitchen-1")
		events, err := store.ReplayEvents(ctx, id, 1)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "IngredientsDelivered", events[0].Type)
		assert.EqualValues(t, 1, events[0].Sequence)
		assert.Equal(t, dishPrepared{Dish: "soup"}, events[1].Content)
		assert.False(t, events[1].Occurred.IsZero())
	})
	t.Run("With a rehydrated aggregate root", func(t *testing.T) {
		store := NewMemoryEventStore()
		aggregates := newTestAggregates(t, store, entity.WithIdleUnloadTimeout(0))

		require.True(t, aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			k.Deliver(1)
			return nil
		}).IsSuccess())

		// every action constructs a new instance from the committed events
		var dishes []string
		require.True(t, aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			assert.EqualValues(t, 1, k.Version())
			assert.Equal(t, "kitchen/tenantA:kitchen-1", k.ID().String())
			if err := k.Prepare("soup"); err != nil {
				return err
			}
			dishes = k.dishes
			return nil
		}).IsSuccess())
		assert.Equal(t, []string{"soup"}, dishes)

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			return k.Prepare("salad")
		})
		assert.ErrorIs(t, result.Err(), errOutOfIngredients)
	})
	t.Run("With a failed action", func(t *testing.T) {
		store := NewMemoryEventStore()
		aggregates := newTestAggregates(t, store)

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			k.Deliver(5)
			return errors.New("delivery refused")
		})
		require.False(t, result.IsSuccess())
		assert.Zero(t, store.Len())

		// the uncommitted delivery is gone
		result = aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			assert.Empty(t, k.Uncommitted())
			return k.Prepare("soup")
		})
		assert.ErrorIs(t, result.Err(), errOutOfIngredients)
	})
	t.Run("With a panicking action", func(t *testing.T) {
		aggregates := newTestAggregates(t, NewMemoryEventStore())

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			k.Deliver(5)
			panic("oven on fire")
		})
		var panicErr *gerrors.PanicError
		require.ErrorAs(t, result.Err(), &panicErr)

		version, err := aggregates.Version(ctx, "tenantA", "kitchen-1")
		require.NoError(t, err)
		assert.Zero(t, version)
	})
	t.Run("With a concurrent writer", func(t *testing.T) {
		store := NewMemoryEventStore()
		aggregates := newTestAggregates(t, store)

		require.True(t, aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			k.Deliver(1)
			return nil
		}).IsSuccess())

		// another process commits behind the loaded instance
		id, _ := identity.New("kitchen", "tenantA", "kitchen-1")
		_, err := store.WriteEvents(ctx, id, 1, []Event{{Type: "IngredientsDelivered", Content: ingredientsDelivered{Amount: 3}}})
		require.NoError(t, err)

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			return k.Prepare("soup")
		})
		assert.ErrorIs(t, result.Err(), gerrors.ErrConcurrencyConflict)

		// the next action sees the events of the other process
		require.True(t, aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
			assert.Equal(t, 4, k.ingredients)
			return k.Prepare("soup")
		}).IsSuccess())

		version, err := aggregates.Version(ctx, "tenantA", "kitchen-1")
		require.NoError(t, err)
		assert.EqualValues(t, 3, version)
	})
	t.Run("With a request id", func(t *testing.T) {
		store := NewMemoryEventStore()
		aggregates := newTestAggregates(t, store)

		var runs atomic.Int32
		for range 2 {
			require.True(t, aggregates.Perform(ctx, "tenantA", "kitchen-1", func(_ context.Context, k *kitchen) error {
				runs.Inc()
				k.Deliver(1)
				return nil
			}, entity.WithRequestID("delivery-1")).IsSuccess())
		}
		assert.EqualValues(t, 1, runs.Load())
	})
	t.Run("With a failing factory", func(t *testing.T) {
		engine := entity.NewEngine(entity.NewRegistry(), entity.WithLogger(log.DiscardLogger))
		t.Cleanup(func() { assert.NoError(t, engine.Stop(ctx)) })

		aggregates, err := Of(engine, "kitchen", NewMemoryEventStore(),
			func(context.Context, tenancy.Services, identity.ClusterIdentity) (*kitchen, error) {
				return nil, errors.New("no kitchen")
			})
		require.NoError(t, err)

		result := aggregates.Perform(ctx, "tenantA", "kitchen-1", func(context.Context, *kitchen) error { return nil })
		assert.ErrorIs(t, result.Err(), gerrors.ErrEntityConstruction)
	})
}

func TestMemoryEventStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	id, err := identity.New("kitchen", "tenantA", "kitchen-1")
	require.NoError(t, err)

	events, err := store.ReplayEvents(ctx, id, 1)
	require.NoError(t, err)
	assert.Empty(t, events)

	committed, err := store.WriteEvents(ctx, id, 0, []Event{{Type: "A"}, {Type: "B"}, {Type: "C"}})
	require.NoError(t, err)
	require.Len(t, committed, 3)
	assert.EqualValues(t, 3, committed[2].Sequence)

	events, err = store.ReplayEvents(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "B", events[0].Type)

	events, err = store.ReplayEvents(ctx, id, 4)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = store.WriteEvents(ctx, id, 1, []Event{{Type: "D"}})
	assert.ErrorIs(t, err, gerrors.ErrConcurrencyConflict)
	assert.Equal(t, 1, store.Len())
}

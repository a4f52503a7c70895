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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/tenancy"
)

type bakery struct{}

func newBakery(context.Context, tenancy.Services, identity.ClusterIdentity) (*bakery, error) {
	return new(bakery), nil
}

func TestRegistry(t *testing.T) {
	t.Run("With a registered type", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, Register(registry, "bakery", newBakery))

		kind, err := KindOf[*bakery](registry)
		require.NoError(t, err)
		assert.Equal(t, "bakery", kind)
		assert.Equal(t, []string{"bakery"}, registry.Kinds())
	})
	t.Run("With an empty kind", func(t *testing.T) {
		err := Register(NewRegistry(), " ", newBakery)
		assert.ErrorIs(t, err, gerrors.ErrKindRequired)
	})
	t.Run("With a duplicate kind", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, Register(registry, "bakery", newBakery))
		err := Register(registry, "bakery", (&kitchenFactory{}).build)
		assert.ErrorIs(t, err, gerrors.ErrKindAlreadyRegistered)
	})
	t.Run("With a duplicate type", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, Register(registry, "bakery", newBakery))
		err := Register(registry, "patisserie", newBakery)
		assert.ErrorIs(t, err, gerrors.ErrKindAlreadyRegistered)
		assert.Panics(t, func() { MustRegister(registry, "patisserie", newBakery) })
	})
	t.Run("With an unregistered type", func(t *testing.T) {
		_, err := KindOf[*bakery](NewRegistry())
		assert.ErrorIs(t, err, gerrors.ErrKindNotRegistered)

		_, err = NewClient[*bakery](NewEngine(NewRegistry()))
		assert.ErrorIs(t, err, gerrors.ErrKindNotRegistered)
	})
}

func TestTry(t *testing.T) {
	success := Success(42)
	assert.True(t, success.IsSuccess())
	assert.Equal(t, 42, success.Value())
	assert.NoError(t, success.Err())

	cause := errors.New("out of stock")
	failure := Failure[int](cause)
	assert.False(t, failure.IsSuccess())
	assert.Zero(t, failure.Value())
	value, err := failure.Get()
	assert.Zero(t, value)
	assert.ErrorIs(t, err, cause)

	mapped := mapTry(Success[any]("soup"), castResult[string])
	assert.Equal(t, "soup", mapped.Value())

	mapped = mapTry(Success[any](1), castResult[string])
	assert.ErrorIs(t, mapped.Err(), gerrors.ErrUnexpectedEntityType)

	mapped = mapTry(Failure[any](cause), castResult[string])
	assert.ErrorIs(t, mapped.Err(), cause)
}

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

package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/log"
)

type repository struct {
	tenant string
	closed bool
}

func (r *repository) Close() error {
	r.closed = true
	return nil
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	created := 0
	registry := NewRegistry(log.DiscardLogger).
		Add("repository", func(_ context.Context, tenant string) (any, error) {
			created++
			return &repository{tenant: tenant}, nil
		}).
		Add("broken", func(context.Context, string) (any, error) {
			return nil, errors.New("unreachable")
		})

	t.Run("With tenant-scoped services", func(t *testing.T) {
		services, err := registry.ForTenant(ctx, "tenantA")
		require.NoError(t, err)
		assert.Equal(t, "tenantA", services.Tenant())

		repo, err := Resolve[*repository](ctx, services, "repository")
		require.NoError(t, err)
		assert.Equal(t, "tenantA", repo.tenant)

		again, err := Resolve[*repository](ctx, services, "repository")
		require.NoError(t, err)
		assert.Same(t, repo, again)
		assert.Equal(t, 1, created)

		require.NoError(t, services.Release())
		assert.True(t, repo.closed)
		require.NoError(t, services.Release())

		_, err = services.Get(ctx, "repository")
		assert.Error(t, err)
	})
	t.Run("With containers isolated", func(t *testing.T) {
		first, err := registry.ForTenant(ctx, "tenantA")
		require.NoError(t, err)
		second, err := registry.ForTenant(ctx, "tenantB")
		require.NoError(t, err)

		a, err := Resolve[*repository](ctx, first, "repository")
		require.NoError(t, err)
		b, err := Resolve[*repository](ctx, second, "repository")
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.Equal(t, "tenantB", b.tenant)
	})
	t.Run("With resolution failures", func(t *testing.T) {
		services, err := registry.ForTenant(ctx, "tenantA")
		require.NoError(t, err)

		_, err = services.Get(ctx, "missing")
		assert.Error(t, err)

		_, err = services.Get(ctx, "broken")
		assert.ErrorContains(t, err, "unreachable")

		_, err = Resolve[string](ctx, services, "repository")
		assert.Error(t, err)
	})
	t.Run("With empty tenant", func(t *testing.T) {
		_, err := registry.ForTenant(ctx, " ")
		assert.ErrorIs(t, err, gerrors.ErrTenantRequired)
	})
	t.Run("With no services", func(t *testing.T) {
		services, err := None().ForTenant(ctx, "tenantA")
		require.NoError(t, err)
		assert.Equal(t, "tenantA", services.Tenant())
		_, err = services.Get(ctx, "repository")
		assert.Error(t, err)
		assert.NoError(t, services.Release())
	})
}

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
	"fmt"

	"github.com/tochemey/eskit/entity"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/tenancy"
)

// Factory builds an empty aggregate root. The committed events are applied to it afterward.
type Factory[T any] func(ctx context.Context, services tenancy.Services, id identity.ClusterIdentity) (T, error)

// Aggregates performs actions on the aggregate roots of type T.
//
// Every aggregate root is hosted as an entity: it is rehydrated from the EventStore when it is
// activated, actions on one aggregate root run one at a time, and the events an action applies
// are committed once it returns. A failed action or commit leaves nothing behind: the aggregate
// root is rehydrated again before the next action.
type Aggregates[T rooted] struct {
	client *entity.Client[*host[T]]
}

// Of registers the aggregate root type T under kind on the engine registry
func Of[T rooted](engine *entity.Engine, kind string, store EventStore, factory Factory[T]) (*Aggregates[T], error) {
	err := entity.Register(engine.Registry(), kind, func(ctx context.Context, services tenancy.Services, id identity.ClusterIdentity) (*host[T], error) {
		h := &host[T]{id: id, services: services, factory: factory, store: store}
		if err := h.load(ctx); err != nil {
			return nil, err
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}

	client, err := entity.NewClient[*host[T]](engine)
	if err != nil {
		return nil, err
	}
	return &Aggregates[T]{client: client}, nil
}

// Perform runs action against the aggregate root of tenant with the given key and commits the events it applied
func (a *Aggregates[T]) Perform(ctx context.Context, tenant, key string, action func(ctx context.Context, root T) error, opts ...entity.CallOption) entity.Try[bool] {
	return a.client.Perform(ctx, tenant, key, func(ctx context.Context, h *host[T]) error {
		return h.perform(ctx, action)
	}, opts...)
}

// Version returns the committed version of the aggregate root of tenant with the given key
func (a *Aggregates[T]) Version(ctx context.Context, tenant, key string) (uint64, error) {
	return entity.PerformAndRespond(ctx, a.client, tenant, key, func(ctx context.Context, h *host[T]) (uint64, error) {
		if err := h.refresh(ctx); err != nil {
			return 0, err
		}
		return h.root.aggregateRoot().Version(), nil
	}).Get()
}

// Kind returns the kind the aggregate roots are registered under
func (a *Aggregates[T]) Kind() string {
	return a.client.Kind()
}

// host is the entity holding one aggregate root
type host[T rooted] struct {
	id       identity.ClusterIdentity
	services tenancy.Services
	factory  Factory[T]
	store    EventStore
	root     T
	// stale is set when root holds state that was never committed
	stale bool
}

func (h *host[T]) load(ctx context.Context) error {
	root, err := h.factory(ctx, h.services, h.id)
	if err != nil {
		return err
	}

	base := root.aggregateRoot()
	base.id = h.id
	base.applier = root
	base.version = 0
	base.uncommitted = nil

	events, err := h.store.ReplayEvents(ctx, h.id, 1)
	if err != nil {
		return fmt.Errorf("failed to replay the events of %s: %w", h.id, err)
	}
	base.rehydrate(events)

	h.root = root
	h.stale = false
	return nil
}

func (h *host[T]) refresh(ctx context.Context) error {
	if !h.stale {
		return nil
	}
	return h.load(ctx)
}

func (h *host[T]) perform(ctx context.Context, action func(ctx context.Context, root T) error) error {
	if err := h.refresh(ctx); err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			h.stale = len(h.root.aggregateRoot().uncommitted) > 0
		}
	}()

	if err := action(ctx, h.root); err != nil {
		return err
	}

	base := h.root.aggregateRoot()
	if len(base.uncommitted) == 0 {
		committed = true
		return nil
	}

	events, err := h.store.WriteEvents(ctx, h.id, base.version, base.uncommitted)
	if err != nil {
		return fmt.Errorf("failed to commit the events of %s: %w", h.id, err)
	}
	base.committed(events[len(events)-1].Sequence)
	committed = true
	return nil
}

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
	"reflect"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
)

// Client is the typed entry point to the entities of type E.
// Creating it fails when E is not registered, so misconfiguration is caught before any call.
type Client[E any] struct {
	engine *Engine
	kind   string
}

// NewClient creates a Client for the entity type E
func NewClient[E any](engine *Engine) (*Client[E], error) {
	kind, err := KindOf[E](engine.registry)
	if err != nil {
		return nil, err
	}
	return &Client[E]{engine: engine, kind: kind}, nil
}

// Kind returns the kind E is registered under
func (c *Client[E]) Kind() string {
	return c.kind
}

// Identity returns the identity of the entity with the given tenant and key
func (c *Client[E]) Identity(tenant, key string) (identity.ClusterIdentity, error) {
	return identity.New(c.kind, tenant, key)
}

// Perform runs fn against the entity of tenant with the given key
func (c *Client[E]) Perform(ctx context.Context, tenant, key string, fn func(ctx context.Context, entity E) error, opts ...CallOption) Try[bool] {
	id, err := c.Identity(tenant, key)
	if err != nil {
		return Failure[bool](err)
	}

	return c.engine.Perform(ctx, id, func(ctx context.Context, instance any) error {
		entity, err := castEntity[E](instance)
		if err != nil {
			return err
		}
		return fn(ctx, entity)
	}, opts...)
}

// Deactivate unloads the entity of tenant with the given key
func (c *Client[E]) Deactivate(ctx context.Context, tenant, key string) error {
	id, err := c.Identity(tenant, key)
	if err != nil {
		return err
	}
	return c.engine.Deactivate(ctx, id)
}

// PerformAndRespond runs fn against the entity of tenant with the given key and returns its result
func PerformAndRespond[E, R any](ctx context.Context, client *Client[E], tenant, key string, fn func(ctx context.Context, entity E) (R, error), opts ...CallOption) Try[R] {
	id, err := client.Identity(tenant, key)
	if err != nil {
		return Failure[R](err)
	}

	result := client.engine.PerformAndRespond(ctx, id, func(ctx context.Context, instance any) (any, error) {
		entity, err := castEntity[E](instance)
		if err != nil {
			return nil, err
		}
		return fn(ctx, entity)
	}, opts...)

	return mapTry(result, castResult[R])
}

func castEntity[E any](instance any) (E, error) {
	entity, ok := instance.(E)
	if !ok {
		var zero E
		return zero, gerrors.NewErrUnexpectedEntityType(typeName[E](), instance)
	}
	return entity, nil
}

func castResult[R any](value any) (R, error) {
	var zero R
	if value == nil {
		return zero, nil
	}
	result, ok := value.(R)
	if !ok {
		return zero, gerrors.NewErrUnexpectedEntityType(typeName[R](), value)
	}
	return result, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

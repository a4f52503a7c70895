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
	"strings"
	"sync"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/tenancy"
)

// Factory builds an empty entity instance for the given identity from its tenant-scoped services.
type Factory[E any] func(ctx context.Context, services tenancy.Services, id identity.ClusterIdentity) (E, error)

type registration struct {
	kind       string
	entityType reflect.Type
	factory    func(ctx context.Context, services tenancy.Services, id identity.ClusterIdentity) (any, error)
}

// Registry binds entity types to their kind and factory.
// It is populated at startup and read by the Engine on every dispatch.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]*registration
	byType map[reflect.Type]*registration
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[string]*registration),
		byType: make(map[reflect.Type]*registration),
	}
}

// Register binds the entity type E to kind. Both the kind and the type can only be registered once.
func Register[E any](registry *Registry, kind string, factory Factory[E]) error {
	if strings.TrimSpace(kind) == "" {
		return gerrors.ErrKindRequired
	}

	entityType := reflect.TypeFor[E]()
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.byKind[kind]; ok {
		return gerrors.NewErrKindAlreadyRegistered(kind)
	}
	if _, ok := registry.byType[entityType]; ok {
		return gerrors.NewErrKindAlreadyRegistered(entityType.String())
	}

	reg := &registration{
		kind:       kind,
		entityType: entityType,
		factory: func(ctx context.Context, services tenancy.Services, id identity.ClusterIdentity) (any, error) {
			return factory(ctx, services, id)
		},
	}
	registry.byKind[kind] = reg
	registry.byType[entityType] = reg
	return nil
}

// MustRegister is like Register but panics on error
func MustRegister[E any](registry *Registry, kind string, factory Factory[E]) {
	if err := Register(registry, kind, factory); err != nil {
		panic(err)
	}
}

// KindOf returns the kind the entity type E is registered under
func KindOf[E any](registry *Registry) (string, error) {
	entityType := reflect.TypeFor[E]()
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	reg, ok := registry.byType[entityType]
	if !ok {
		return "", gerrors.NewErrKindNotRegistered(entityType.String())
	}
	return reg.kind, nil
}

// Kinds returns every registered kind
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (r *Registry) lookup(kind string) (*registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byKind[kind]
	if !ok {
		return nil, gerrors.NewErrKindNotRegistered(kind)
	}
	return reg, nil
}

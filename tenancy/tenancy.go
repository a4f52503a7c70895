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
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/multierr"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/internal/xsync"
	"github.com/tochemey/eskit/log"
)

// Services is the dependency context of one tenant.
// An entity receives its own Services on activation and releases it when it stops.
type Services interface {
	// Tenant returns the tenant the services are scoped to
	Tenant() string
	// Get returns the service registered under name, creating it on first use
	Get(ctx context.Context, name string) (any, error)
	// Release closes every service created through Get that implements io.Closer
	Release() error
}

// Provider resolves tenant-scoped Services
type Provider interface {
	ForTenant(ctx context.Context, tenant string) (Services, error)
}

// ServiceFactory builds one service for the given tenant
type ServiceFactory func(ctx context.Context, tenant string) (any, error)

// Registry is a Provider built from named service factories.
// Every call to ForTenant returns a fresh container: services are never shared between two containers.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ServiceFactory
	logger    log.Logger
}

var _ Provider = (*Registry)(nil)

// NewRegistry creates an empty Registry
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Registry{
		factories: make(map[string]ServiceFactory),
		logger:    logger,
	}
}

// Add registers a service factory under name. A second registration under the same name replaces the first.
func (r *Registry) Add(name string, factory ServiceFactory) *Registry {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
	return r
}

// ForTenant returns a new Services container for tenant
func (r *Registry) ForTenant(_ context.Context, tenant string) (Services, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, gerrors.ErrTenantRequired
	}

	r.mu.RLock()
	factories := make(map[string]ServiceFactory, len(r.factories))
	for name, factory := range r.factories {
		factories[name] = factory
	}
	r.mu.RUnlock()

	return &services{
		tenant:    tenant,
		factories: factories,
		instances: xsync.NewMap[string, any](),
		logger:    r.logger,
	}, nil
}

type services struct {
	tenant    string
	factories map[string]ServiceFactory
	instances *xsync.Map[string, any]
	logger    log.Logger

	mu       sync.Mutex
	released bool
}

func (s *services) Tenant() string {
	return s.tenant
}

func (s *services) Get(ctx context.Context, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("services for tenant %s are released", s.tenant)
	}

	if instance, ok := s.instances.Get(name); ok {
		return instance, nil
	}

	factory, ok := s.factories[name]
	if !ok {
		return nil, fmt.Errorf("service %s is not registered", name)
	}

	instance, err := factory(ctx, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to create service %s for tenant %s: %w", name, s.tenant, err)
	}
	s.instances.Set(name, instance)
	return instance, nil
}

func (s *services) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true

	var err error
	for _, instance := range s.instances.Values() {
		if closer, ok := instance.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	s.instances.Reset()

	if err != nil {
		s.logger.Warnf("failed to release services of tenant %s: %v", s.tenant, err)
	}
	return err
}

// Resolve returns the service registered under name as a T
func Resolve[T any](ctx context.Context, services Services, name string) (T, error) {
	var zero T
	instance, err := services.Get(ctx, name)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service %s is a %T, not a %T", name, instance, zero)
	}
	return typed, nil
}

type noServices struct {
	tenant string
}

// None returns a Provider without any service. Entities that need no dependency use it.
func None() Provider {
	return noneProvider{}
}

type noneProvider struct{}

func (noneProvider) ForTenant(_ context.Context, tenant string) (Services, error) {
	return noServices{tenant: tenant}, nil
}

func (n noServices) Tenant() string {
	return n.tenant
}

func (n noServices) Get(_ context.Context, name string) (any, error) {
	return nil, fmt.Errorf("service %s is not registered", name)
}

func (noServices) Release() error {
	return nil
}

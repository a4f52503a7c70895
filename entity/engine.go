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
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/internal/xsync"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/subscription"
	"github.com/tochemey/eskit/telemetry"
)

// Engine routes operations to entity actors by identity.
// Actors are created on the first message sent to an identity and unloaded according to
// the idle unload policy. A message that reaches an actor while it stops is transparently
// handed over to a fresh actor for the same identity.
type Engine struct {
	registry *Registry
	config   *engineConfig
	logger   log.Logger
	metrics  *telemetry.EntityMetrics

	table *xsync.ShardedMap[*entityPID]
	dedup *deduplicator

	// lifecycle orders dispatching against stopping
	lifecycle sync.RWMutex
	stopped   atomic.Bool
}

var _ subscription.Source = (*Engine)(nil)

// NewEngine creates an Engine for the entity types of registry
func NewEngine(registry *Registry, opts ...Option) *Engine {
	config := newEngineConfig(opts...)
	engine := &Engine{
		registry: registry,
		config:   config,
		logger:   config.logger,
		table:    xsync.NewShardedMap[*entityPID](),
	}

	if config.deduplicationWindow > 0 {
		engine.dedup = newDeduplicator(config.deduplicationWindow)
	}

	if config.telemetry != nil {
		metrics, err := telemetry.NewEntityMetrics(config.telemetry.Meter)
		if err != nil {
			engine.logger.Warnf("entity metrics disabled: %v", err)
		} else {
			engine.metrics = metrics
		}
	}
	return engine
}

// Registry returns the registry the engine routes for
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Perform runs fn against the entity identified by id.
// The failure of fn, a panic included, is returned in the Try and leaves the entity loaded.
func (e *Engine) Perform(ctx context.Context, id identity.ClusterIdentity, fn func(ctx context.Context, entity any) error, opts ...CallOption) Try[bool] {
	result := e.PerformAndRespond(ctx, id, func(ctx context.Context, entity any) (any, error) {
		if err := fn(ctx, entity); err != nil {
			return false, err
		}
		return true, nil
	}, opts...)
	return mapTry(result, func(any) (bool, error) { return true, nil })
}

// PerformAndRespond runs fn against the entity identified by id and returns its result.
// When ctx is done before fn returns, the Try carries the context error.
func (e *Engine) PerformAndRespond(ctx context.Context, id identity.ClusterIdentity, fn func(ctx context.Context, entity any) (any, error), opts ...CallOption) Try[any] {
	config := newCallConfig(opts...)
	if config.requestID != "" && e.dedup != nil {
		return e.dedup.do(ctx, id.String()+"|"+config.requestID, func() Try[any] {
			return e.perform(ctx, id, fn)
		})
	}
	return e.perform(ctx, id, fn)
}

func (e *Engine) perform(ctx context.Context, id identity.ClusterIdentity, fn func(ctx context.Context, entity any) (any, error)) Try[any] {
	if err := ctx.Err(); err != nil {
		return Failure[any](err)
	}

	op := newOperation(ctx, fn)
	if err := e.dispatch(id, op); err != nil {
		return Failure[any](err)
	}

	select {
	case result := <-op.reply:
		return result
	case <-ctx.Done():
		return Failure[any](ctx.Err())
	}
}

// Deactivate unloads the entity identified by id once the operations queued before are processed.
// It does nothing when the entity is not loaded.
func (e *Engine) Deactivate(ctx context.Context, id identity.ClusterIdentity) error {
	pid, ok := e.table.Load(id.String())
	if !ok {
		return nil
	}
	return pid.deactivate(ctx)
}

// Subscribe registers sink against the entity identified by id, loading it when needed.
// Entities implementing Snapshotter deliver a snapshot right away and after every successful operation.
// An entity with subscribers is never unloaded for idleness.
func (e *Engine) Subscribe(ctx context.Context, id identity.ClusterIdentity, sink subscription.Sink) (string, error) {
	msg := &subscribeMessage{
		ctx:   ctx,
		id:    uuid.NewString(),
		sink:  sink,
		reply: make(chan error, 1),
	}
	if err := e.dispatch(id, msg); err != nil {
		return "", err
	}

	select {
	case err := <-msg.reply:
		if err != nil {
			return "", err
		}
		return msg.id, nil
	case <-ctx.Done():
		// the subscription may still be registered: remove it behind the subscribe message
		if pid, ok := e.table.Load(id.String()); ok {
			pid.tell(&unsubscribeMessage{id: msg.id})
		}
		return "", ctx.Err()
	}
}

// Unsubscribe removes a subscription registered with Subscribe
func (e *Engine) Unsubscribe(ctx context.Context, id identity.ClusterIdentity, subscriptionID string) error {
	pid, ok := e.table.Load(id.String())
	if !ok {
		return nil
	}

	msg := &unsubscribeMessage{id: subscriptionID, reply: make(chan error, 1)}
	if !pid.tell(msg) {
		return nil
	}

	select {
	case err := <-msg.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether the entity identified by id currently has an actor
func (e *Engine) Loaded(id identity.ClusterIdentity) bool {
	_, ok := e.table.Load(id.String())
	return ok
}

// Len returns the number of loaded entities
func (e *Engine) Len() int {
	return e.table.Len()
}

// Stop deactivates every entity. Operations sent after Stop fail with ErrEngineStopped.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycle.Lock()
	alreadyStopped := e.stopped.Swap(true)
	e.lifecycle.Unlock()
	if alreadyStopped {
		return nil
	}

	e.logger.Infof("stopping entity engine, %d entities loaded", e.table.Len())

	// actors stopped while Stop runs may hand their queue over to a successor: loop until none is left
	for e.table.Len() > 0 {
		var (
			mu   sync.Mutex
			errs error
		)

		group := new(errgroup.Group)
		group.SetLimit(64)
		for _, pid := range e.table.Values() {
			group.Go(func() error {
				if err := pid.deactivate(ctx); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("failed to deactivate %s: %w", pid.key, err))
					mu.Unlock()
				}
				return nil
			})
		}
		_ = group.Wait()

		if errs != nil {
			return errs
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	e.logger.Info("entity engine stopped")
	return nil
}

func (e *Engine) dispatch(id identity.ClusterIdentity, msg message) error {
	if id.IsZero() {
		return gerrors.ErrKindRequired
	}

	reg, err := e.registry.lookup(id.Kind())
	if err != nil {
		return err
	}

	e.lifecycle.RLock()
	defer e.lifecycle.RUnlock()
	if e.stopped.Load() {
		return gerrors.ErrEngineStopped
	}

	key := id.String()
	for {
		pid, _ := e.table.LoadOrCreate(key, func() *entityPID {
			return newPID(e, id, reg)
		})
		if pid.tell(msg) {
			return nil
		}
	}
}

func (e *Engine) isStopped() bool {
	return e.stopped.Load()
}

// reject fails the messages of a stopping actor that cannot be handed over
func (e *Engine) reject(messages []message) {
	for _, msg := range messages {
		switch m := msg.(type) {
		case *operation:
			m.respond(Failure[any](gerrors.ErrEngineStopped))
		case *subscribeMessage:
			m.reply <- gerrors.ErrEngineStopped
		}
	}
}

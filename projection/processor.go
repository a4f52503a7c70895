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

package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/tochemey/eskit/entity"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/subscription"
	"github.com/tochemey/eskit/tenancy"
)

// Processor folds events into the read models of one projection.
//
// Every read model is hosted as an entity of the projection kind, so the events of one key are
// applied one at a time in the order Handle is called, while distinct keys are processed
// concurrently. Read models are loaded from the Store on activation and written back after
// every event.
type Processor[T any] struct {
	projection *Projection[T]
	engine     *entity.Engine
	client     *entity.Client[*readModel[T]]
	logger     log.Logger
	recovery   *RecoverySetting
}

// NewProcessor registers the projection kind on the engine registry and returns its Processor.
// Each read model type can back a single projection.
func NewProcessor[T any](engine *entity.Engine, projection *Projection[T], store Store[T], opts ...Option) (*Processor[T], error) {
	if store == nil {
		return nil, errors.New("projection store is not defined")
	}

	config := newProcessorConfig(opts...)
	factory := func(ctx context.Context, _ tenancy.Services, id identity.ClusterIdentity) (*readModel[T], error) {
		record, err := store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load read model %s: %w", id, err)
		}
		return &readModel[T]{id: id, store: store, record: record}, nil
	}

	if err := entity.Register(engine.Registry(), projection.kind, factory); err != nil {
		return nil, err
	}

	client, err := entity.NewClient[*readModel[T]](engine)
	if err != nil {
		return nil, err
	}

	return &Processor[T]{
		projection: projection,
		engine:     engine,
		client:     client,
		logger:     config.logger,
		recovery:   config.recovery,
	}, nil
}

// Handle applies event to the read model of tenant its key selector points to.
// Failures are handled according to the recovery setting. An event type without handler
// or an event the key selector cannot key is always returned as an error.
func (p *Processor[T]) Handle(ctx context.Context, tenant string, event Event) error {
	h, key, err := p.projection.selectHandler(event)
	if err != nil {
		return err
	}

	apply := func(ctx context.Context) error {
		return p.client.Perform(ctx, tenant, key, func(ctx context.Context, model *readModel[T]) error {
			return model.apply(ctx, h, p.projection.initial, event)
		}).Err()
	}

	strategy := p.recovery.RecoveryStrategy()
	switch strategy {
	case RetryAndFail, RetryAndSkip:
		retrier := retry.NewRetrier(p.recovery.Retries(), 100*time.Millisecond, p.recovery.RetryDelay())
		err = retrier.RunContext(ctx, apply)
	default:
		err = apply(ctx)
	}

	if err == nil {
		return nil
	}

	err = fmt.Errorf("failed to apply %s (sequence=%d) to %s/%s:%s: %w",
		event.Context.EventType, event.Context.Sequence, p.projection.kind, tenant, key, err)
	if ctx.Err() == nil && (strategy == Skip || strategy == RetryAndSkip) {
		p.logger.Errorf("%v, skipping", err)
		return nil
	}
	p.logger.Error(err)
	return err
}

// Get returns the read model of tenant with the given key.
// The boolean is false when no read model exists for the key.
func (p *Processor[T]) Get(ctx context.Context, tenant, key string) (T, bool, error) {
	var zero T
	record, err := entity.PerformAndRespond(ctx, p.client, tenant, key,
		func(_ context.Context, model *readModel[T]) (*Record[T], error) {
			return model.record, nil
		}).Get()
	if err != nil {
		return zero, false, err
	}
	if record == nil {
		return zero, false, nil
	}
	return record.Model, true, nil
}

// Subscribe streams the read model of tenant with the given key: its current value first,
// then the value after every event applied to it.
func (p *Processor[T]) Subscribe(ctx context.Context, tenant, key string, opts ...subscription.Option) (*subscription.Actor[T], error) {
	id, err := p.client.Identity(tenant, key)
	if err != nil {
		return nil, err
	}
	return subscription.Start[T](ctx, p.engine, id, opts...)
}

// Kind returns the entity kind the read models are hosted under
func (p *Processor[T]) Kind() string {
	return p.projection.kind
}

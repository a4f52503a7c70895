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

package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/internal/queue"
)

// Sink receives what a Source publishes to one subscription.
// Deliver and Complete must not block: the Source calls them from its own processing loop.
type Sink interface {
	// Deliver hands over one item
	Deliver(item any)
	// Complete ends the subscription. A nil err means the source completed normally.
	Complete(err error)
}

// Source is something a subscription can be opened against, typically an entity engine.
type Source interface {
	// Subscribe registers sink against target and returns the subscription id
	Subscribe(ctx context.Context, target identity.ClusterIdentity, sink Sink) (string, error)
	// Unsubscribe removes the subscription. Unknown ids are ignored.
	Unsubscribe(ctx context.Context, target identity.ClusterIdentity, subscriptionID string) error
}

const (
	// DefaultUnsubscribeTimeout bounds the unsubscribe request sent on cancellation
	DefaultUnsubscribeTimeout = 5 * time.Second
)

type signalKind int

const (
	itemSignal signalKind = iota
	completeSignal
	cancelSignal
)

type signal struct {
	kind signalKind
	item any
	err  error
}

// inbox is the Sink handed to the Source. It never blocks.
type inbox struct {
	queue *queue.Unbounded[signal]
}

func (i *inbox) Deliver(item any) {
	i.queue.Push(signal{kind: itemSignal, item: item})
}

func (i *inbox) Complete(err error) {
	i.queue.Push(signal{kind: completeSignal, err: err})
}

// Actor bridges a subscription opened against a Source into a channel of T.
//
// Items are written to the channel in the order the Source published them, and the write waits
// for the consumer. When the context given to Start is cancelled, or Stop is called, the actor
// unsubscribes from the Source and closes the channel. When the Source completes the subscription
// the channel is closed and Err reports the terminal condition.
type Actor[T any] struct {
	source Source
	target identity.ClusterIdentity
	id     string
	config *config
	inbox  *inbox
	out    chan T
	done   chan struct{}
	err    error

	stopping chan struct{}
	stopOnce sync.Once
}

// Start subscribes to target on source and starts forwarding its items
func Start[T any](ctx context.Context, source Source, target identity.ClusterIdentity, opts ...Option) (*Actor[T], error) {
	config := newConfig(opts...)
	actor := &Actor[T]{
		source: source,
		target: target,
		config: config,
		inbox:  &inbox{queue: queue.NewUnbounded[signal]()},
		out:    make(chan T, config.bufferSize),
		done:   make(chan struct{}),

		stopping: make(chan struct{}),
	}

	id, err := source.Subscribe(ctx, target, actor.inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", target, err)
	}
	actor.id = id
	config.logger.Debugf("subscription %s to %s started", id, target)

	go actor.run(ctx)
	return actor, nil
}

// ID returns the subscription id assigned by the Source
func (a *Actor[T]) ID() string {
	return a.id
}

// C returns the channel the items are written to. It is closed when the subscription ends.
func (a *Actor[T]) C() <-chan T {
	return a.out
}

// Done is closed once the subscription ended and C is closed
func (a *Actor[T]) Done() <-chan struct{} {
	return a.done
}

// Err returns the terminal condition once Done is closed:
// nil when the subscription was cancelled or the Source completed it normally.
func (a *Actor[T]) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Stop cancels the subscription and waits for the channel to be closed
func (a *Actor[T]) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopping)
		a.inbox.queue.Push(signal{kind: cancelSignal})
	})
	<-a.done
}

func (a *Actor[T]) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		a.inbox.queue.Push(signal{kind: cancelSignal})
	})
	defer stop()

	for {
		sig, ok := a.inbox.queue.Wait()
		if !ok {
			a.complete(gerrors.ErrSubscriptionClosed)
			return
		}

		switch sig.kind {
		case cancelSignal:
			a.unsubscribe()
			a.complete(nil)
			return

		case completeSignal:
			if sig.err != nil {
				a.config.logger.Warnf("subscription %s to %s ended: %v", a.id, a.target, sig.err)
			}
			a.complete(sig.err)
			return

		default:
			item, ok := sig.item.(T)
			if !ok {
				var zero T
				a.unsubscribe()
				a.complete(fmt.Errorf("expected %T, got %T: %w", zero, sig.item, gerrors.ErrUnexpectedItemType))
				return
			}

			// a pending item must not hold off cancellation
			select {
			case a.out <- item:
			case <-ctx.Done():
				a.unsubscribe()
				a.complete(nil)
				return
			case <-a.stopping:
				a.unsubscribe()
				a.complete(nil)
				return
			}
		}
	}
}

func (a *Actor[T]) unsubscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.unsubscribeTimeout)
	defer cancel()
	if err := a.source.Unsubscribe(ctx, a.target, a.id); err != nil {
		a.config.logger.Warnf("failed to unsubscribe %s from %s: %v", a.id, a.target, err)
		return
	}
	a.config.logger.Debugf("subscription %s to %s cancelled", a.id, a.target)
}

// complete is only called by run, exactly once
func (a *Actor[T]) complete(err error) {
	a.err = err
	a.inbox.queue.Close()
	close(a.out)
	close(a.done)
}

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
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/subscription"
	"github.com/tochemey/eskit/tenancy"
)

const (
	idle int32 = iota
	busy
)

// Snapshotter is implemented by entities that publish their state to subscribers.
// Snapshot is called on subscribe and after every successful operation.
type Snapshotter interface {
	Snapshot() any
}

// entityPID is the single-threaded execution unit of one entity instance.
// Messages are processed one at a time, in the order they were enqueued.
type entityPID struct {
	id     identity.ClusterIdentity
	key    string
	reg    *registration
	engine *Engine
	logger log.Logger

	mailbox    *mailbox
	processing atomic.Int32

	// mu orders enqueueing against stopping so that no message is lost
	mu      sync.Mutex
	stopped bool

	// the fields below are only touched by the processing loop
	instance    any
	services    tenancy.Services
	activated   bool
	idleTimer   *time.Timer
	generation  uint64
	subscribers map[string]subscription.Sink
}

func newPID(engine *Engine, id identity.ClusterIdentity, reg *registration) *entityPID {
	pid := &entityPID{
		id:      id,
		key:     id.String(),
		reg:     reg,
		engine:  engine,
		logger:  engine.logger,
		mailbox: newMailbox(),
	}
	pid.processing.Store(idle)
	return pid
}

// tell enqueues the message and schedules its processing.
// It returns false when the actor is stopped; the caller then routes the message to its successor.
func (pid *entityPID) tell(msg message) bool {
	pid.mu.Lock()
	if pid.stopped {
		pid.mu.Unlock()
		return false
	}
	pid.mailbox.Enqueue(msg)
	pid.mu.Unlock()

	pid.process()
	return true
}

// process drains the mailbox on its own goroutine
func (pid *entityPID) process() {
	// only start a processing loop when transitioning from idle to busy
	if !pid.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			if msg := pid.mailbox.Dequeue(); msg != nil {
				pid.handle(msg)
			}

			pid.processing.Store(idle)

			// check if new messages were added in the meantime and restart processing
			if !pid.mailbox.IsEmpty() && pid.processing.CompareAndSwap(idle, busy) {
				continue
			}
			return
		}
	}()
}

func (pid *entityPID) handle(msg message) {
	switch m := msg.(type) {
	case *operation:
		pid.handleOperation(m)
	case *subscribeMessage:
		pid.handleSubscribe(m)
	case *unsubscribeMessage:
		pid.handleUnsubscribe(m)
	case *idleMessage:
		pid.handleIdle(m)
	case *deactivateMessage:
		pid.stop(gerrors.ErrEntityDeactivated, "deactivated")
		close(m.done)
	}
}

func (pid *entityPID) handleOperation(op *operation) {
	// the caller gave up before the operation was dequeued
	if err := op.ctx.Err(); err != nil {
		op.respond(Failure[any](err))
		if !pid.activated {
			pid.stop(nil, "cancelled before activation")
		}
		return
	}

	if err := pid.activate(op.ctx); err != nil {
		op.respond(Failure[any](err))
		pid.stop(err, "construction failure")
		return
	}

	start := time.Now()
	value, err := pid.invoke(op)
	pid.engine.metrics.RecordOperation(op.ctx, pid.id.Kind(), time.Since(start), err != nil)
	if err != nil {
		pid.logger.Debugf("operation on entity %s failed: %v", pid.key, err)
		op.respond(Failure[any](err))
	} else {
		pid.publish()
		op.respond(Success(value))
	}

	pid.afterActivity()
}

func (pid *entityPID) handleSubscribe(m *subscribeMessage) {
	if err := pid.activate(m.ctx); err != nil {
		m.reply <- err
		pid.stop(err, "construction failure")
		return
	}

	if pid.subscribers == nil {
		pid.subscribers = make(map[string]subscription.Sink)
	}
	pid.subscribers[m.id] = m.sink
	pid.cancelIdle()
	m.reply <- nil

	if snapshot, ok := pid.snapshot(); ok {
		m.sink.Deliver(snapshot)
	}
}

func (pid *entityPID) handleUnsubscribe(m *unsubscribeMessage) {
	if _, ok := pid.subscribers[m.id]; !ok {
		m.respond(nil)
		return
	}

	delete(pid.subscribers, m.id)
	m.respond(nil)
	pid.afterActivity()
}

func (pid *entityPID) handleIdle(m *idleMessage) {
	if m.generation != pid.generation || len(pid.subscribers) > 0 {
		return
	}
	pid.stop(nil, "idle")
}

// afterActivity applies the idle unload policy once a message was processed
func (pid *entityPID) afterActivity() {
	if len(pid.subscribers) > 0 {
		pid.cancelIdle()
		return
	}

	switch timeout := pid.engine.config.idleUnloadTimeout; {
	case timeout == 0:
		pid.stop(nil, "unloaded after operation")
	case timeout > 0:
		pid.armIdle(timeout)
	}
}

func (pid *entityPID) armIdle(timeout time.Duration) {
	pid.cancelIdle()
	generation := pid.generation
	pid.idleTimer = time.AfterFunc(timeout, func() {
		pid.tell(&idleMessage{generation: generation})
	})
}

func (pid *entityPID) cancelIdle() {
	if pid.idleTimer != nil {
		pid.idleTimer.Stop()
		pid.idleTimer = nil
	}
	pid.generation++
}

// activate constructs the entity instance on first use
func (pid *entityPID) activate(ctx context.Context) error {
	if pid.activated {
		return nil
	}

	config := pid.engine.config
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.activationTimeout)
	defer cancel()

	kind := pid.id.Kind()
	services, err := config.provider.ForTenant(ctx, pid.id.Tenant())
	if err != nil {
		pid.engine.metrics.RecordConstructionFailure(ctx, kind)
		pid.logger.Errorf("failed to resolve the services of entity %s: %v", pid.key, err)
		return gerrors.NewConstructionError(pid.key, err)
	}

	var instance any
	construct := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = gerrors.RecoveredPanic(r)
			}
		}()
		instance, err = pid.reg.factory(ctx, services, pid.id)
		return err
	}

	if config.constructionRetries > 0 {
		retrier := retry.NewRetrier(config.constructionRetries, 10*time.Millisecond, config.activationTimeout)
		err = retrier.RunContext(ctx, construct)
	} else {
		err = construct(ctx)
	}

	if err != nil {
		if rerr := services.Release(); rerr != nil {
			pid.logger.Warnf("failed to release the services of entity %s: %v", pid.key, rerr)
		}
		pid.engine.metrics.RecordConstructionFailure(ctx, kind)
		pid.logger.Errorf("entity %s construction failed: %v", pid.key, err)
		return gerrors.NewConstructionError(pid.key, err)
	}

	pid.instance = instance
	pid.services = services
	pid.activated = true
	pid.engine.metrics.RecordActivation(ctx, kind)
	pid.logger.Debugf("entity %s activated", pid.key)
	return nil
}

func (pid *entityPID) invoke(op *operation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.RecoveredPanic(r)
		}
	}()
	return op.fn(op.ctx, pid.instance)
}

func (pid *entityPID) snapshot() (snapshot any, ok bool) {
	snapshotter, isSnapshotter := pid.instance.(Snapshotter)
	if !isSnapshotter {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			pid.logger.Errorf("entity %s snapshot failed: %v", pid.key, gerrors.RecoveredPanic(r))
			snapshot, ok = nil, false
		}
	}()
	return snapshotter.Snapshot(), true
}

func (pid *entityPID) publish() {
	if len(pid.subscribers) == 0 {
		return
	}
	if snapshot, ok := pid.snapshot(); ok {
		for _, sink := range pid.subscribers {
			sink.Deliver(snapshot)
		}
	}
}

// stop terminates the actor. Messages still queued are handed over, in order,
// to a fresh actor for the same identity before it becomes reachable.
func (pid *entityPID) stop(cause error, reason string) {
	pid.cancelIdle()

	pid.mu.Lock()
	pid.stopped = true
	forward := pid.pending()

	var successor *entityPID
	if len(forward) > 0 && !pid.engine.isStopped() {
		successor = newPID(pid.engine, pid.id, pid.reg)
		for _, msg := range forward {
			successor.mailbox.Enqueue(msg)
		}
		if !pid.engine.table.ReplaceIf(pid.key, pid.same, successor) {
			successor = nil
		}
	} else {
		pid.engine.table.DeleteIf(pid.key, pid.same)
	}
	pid.mu.Unlock()

	switch {
	case successor != nil:
		successor.process()
	case len(forward) > 0:
		pid.engine.reject(forward)
	}

	pid.release(cause, reason)
}

// pending drains the mailbox and keeps the messages a successor must process
func (pid *entityPID) pending() []message {
	var forward []message
	for _, msg := range pid.mailbox.Drain() {
		switch m := msg.(type) {
		case *operation, *subscribeMessage:
			forward = append(forward, m)
		case *unsubscribeMessage:
			m.respond(nil)
		case *deactivateMessage:
			close(m.done)
		}
	}
	return forward
}

func (pid *entityPID) same(other *entityPID) bool {
	return other == pid
}

func (pid *entityPID) release(cause error, reason string) {
	if len(pid.subscribers) > 0 {
		if cause == nil {
			cause = gerrors.ErrEntityDeactivated
		}
		for _, sink := range pid.subscribers {
			sink.Complete(cause)
		}
		pid.subscribers = nil
	}

	if pid.services != nil {
		if err := pid.services.Release(); err != nil {
			pid.logger.Warnf("failed to release the services of entity %s: %v", pid.key, err)
		}
		pid.services = nil
	}

	if pid.activated {
		pid.engine.metrics.RecordPassivation(context.Background(), pid.id.Kind())
		pid.logger.Debugf("entity %s unloaded (%s)", pid.key, reason)
	}
	pid.instance = nil
	pid.activated = false
}

// deactivate asks the actor to stop once the messages queued before are processed
func (pid *entityPID) deactivate(ctx context.Context) error {
	done := make(chan struct{})
	if !pid.tell(&deactivateMessage{done: done}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

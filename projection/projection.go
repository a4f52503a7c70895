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
	"fmt"
	"sort"

	gerrors "github.com/tochemey/eskit/errors"
)

// Result tells the processor what becomes of a read model once an event was folded into it
type Result int

const (
	// Replace stores the read model returned by the handler
	Replace Result = iota
	// Delete removes the read model
	Delete
)

// Handler folds an event into a read model. It receives the current read model, or the
// initial one when none exists yet, and returns the next one.
// Handlers must not mutate a read model they failed to fold into.
type Handler[T any] func(ctx context.Context, model T, event Event) (T, Result, error)

type handler[T any] struct {
	selector KeySelector
	fold     Handler[T]
}

// Projection describes how events are folded into read models of type T.
// A Projection is immutable once handed to a Processor.
type Projection[T any] struct {
	kind     string
	initial  func() T
	handlers map[string]handler[T]
}

// New creates a Projection registered under kind. initial builds the read model
// an event is folded into when no read model exists for its key.
func New[T any](kind string, initial func() T) *Projection[T] {
	if initial == nil {
		initial = func() T {
			var zero T
			return zero
		}
	}
	return &Projection[T]{
		kind:     kind,
		initial:  initial,
		handlers: make(map[string]handler[T]),
	}
}

// On registers the handler of an event type together with the selector of the read model key.
// A second registration for the same event type replaces the first.
func (p *Projection[T]) On(eventType string, selector KeySelector, fold Handler[T]) *Projection[T] {
	p.handlers[eventType] = handler[T]{selector: selector, fold: fold}
	return p
}

// Kind returns the entity kind the read models are hosted under
func (p *Projection[T]) Kind() string {
	return p.kind
}

// EventTypes returns the event types the projection handles, sorted
func (p *Projection[T]) EventTypes() []string {
	types := make([]string, 0, len(p.handlers))
	for eventType := range p.handlers {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

func (p *Projection[T]) selectHandler(event Event) (handler[T], string, error) {
	h, ok := p.handlers[event.Context.EventType]
	if !ok || h.fold == nil || h.selector == nil {
		return handler[T]{}, "", fmt.Errorf("projection=(%s) event=(%s): %w", p.kind, event.Context.EventType, gerrors.ErrUnhandledEvent)
	}

	key, err := h.selector(event)
	if err != nil {
		return handler[T]{}, "", fmt.Errorf("projection=(%s) event=(%s): %w", p.kind, event.Context.EventType, err)
	}
	return h, key, nil
}

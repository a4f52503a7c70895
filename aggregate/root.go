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
	"time"

	"github.com/tochemey/eskit/identity"
)

// Event is a domain event applied to an aggregate root
type Event struct {
	// Type names the event
	Type string
	// Content is the event payload
	Content any
	// Sequence is the position of the event in the stream of its aggregate root, starting at one.
	// It is assigned when the event is committed.
	Sequence uint64
	// Occurred is the commit time, assigned when the event is committed
	Occurred time.Time
}

// Applier is implemented by aggregate roots to fold an event into their state.
// It is called for every event applied by the root and for every committed event on rehydration.
type Applier interface {
	On(event Event)
}

// Root is embedded by aggregate roots. It tracks the committed version and the events
// applied since the last commit.
//
//	type Kitchen struct {
//		aggregate.Root
//		ingredients int
//	}
//
//	func (k *Kitchen) Prepare(dish string) error {
//		if k.ingredients == 0 {
//			return ErrOutOfIngredients
//		}
//		k.Apply("DishPrepared", DishPrepared{Dish: dish})
//		return nil
//	}
type Root struct {
	id          identity.ClusterIdentity
	version     uint64
	uncommitted []Event
	applier     Applier
}

// ID returns the identity of the aggregate root
func (r *Root) ID() identity.ClusterIdentity {
	return r.id
}

// Version returns the number of committed events
func (r *Root) Version() uint64 {
	return r.version
}

// Uncommitted returns the events applied since the last commit
func (r *Root) Uncommitted() []Event {
	return r.uncommitted
}

// Apply records an event and folds it into the aggregate root state
func (r *Root) Apply(eventType string, content any) {
	event := Event{Type: eventType, Content: content}
	r.uncommitted = append(r.uncommitted, event)
	if r.applier != nil {
		r.applier.On(event)
	}
}

func (r *Root) aggregateRoot() *Root {
	return r
}

func (r *Root) rehydrate(events []Event) {
	for _, event := range events {
		if r.applier != nil {
			r.applier.On(event)
		}
		r.version = event.Sequence
	}
}

func (r *Root) committed(version uint64) {
	r.version = version
	r.uncommitted = nil
}

// rooted is satisfied by pointers to types embedding Root
type rooted interface {
	Applier
	aggregateRoot() *Root
}

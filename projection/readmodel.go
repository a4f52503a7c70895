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

	"github.com/tochemey/eskit/identity"
)

// readModel is the entity hosting one read model
type readModel[T any] struct {
	id     identity.ClusterIdentity
	store  Store[T]
	record *Record[T]
}

// Snapshot publishes the read model, or the zero T once deleted
func (m *readModel[T]) Snapshot() any {
	if m.record == nil {
		var zero T
		return zero
	}
	return m.record.Model
}

func (m *readModel[T]) apply(ctx context.Context, h handler[T], initial func() T, event Event) error {
	model := initial()
	if m.record != nil {
		if sequence := event.Context.Sequence; sequence != 0 && sequence <= m.record.Sequence {
			return nil
		}
		model = m.record.Model
	}

	next, result, err := h.fold(ctx, model, event)
	if err != nil {
		return err
	}

	if result == Delete {
		if err := m.store.Delete(ctx, m.id); err != nil {
			return err
		}
		m.record = nil
		return nil
	}

	record := &Record[T]{Model: next, Sequence: event.Context.Sequence}
	if err := m.store.Save(ctx, m.id, record); err != nil {
		return err
	}
	m.record = record
	return nil
}

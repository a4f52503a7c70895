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
	"github.com/tochemey/eskit/internal/xsync"
)

// Record is a read model as kept by a Store
type Record[T any] struct {
	Model T
	// Sequence is the position of the last event applied to Model
	Sequence uint64
}

// Store persists the read models of a projection.
// Implementations must be safe for concurrent use: distinct read models are written concurrently.
type Store[T any] interface {
	// Load returns the read model with the given identity, or nil when there is none
	Load(ctx context.Context, id identity.ClusterIdentity) (*Record[T], error)
	// Save inserts or replaces a read model
	Save(ctx context.Context, id identity.ClusterIdentity, record *Record[T]) error
	// Delete removes a read model. Deleting a missing read model is not an error.
	Delete(ctx context.Context, id identity.ClusterIdentity) error
}

// MemoryStore keeps read models in memory. It is meant for tests and single process setups.
type MemoryStore[T any] struct {
	records *xsync.Map[string, Record[T]]
}

var _ Store[any] = (*MemoryStore[any])(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: xsync.NewMap[string, Record[T]]()}
}

// Load returns the read model with the given identity
func (s *MemoryStore[T]) Load(_ context.Context, id identity.ClusterIdentity) (*Record[T], error) {
	record, ok := s.records.Get(id.String())
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Save inserts or replaces a read model
func (s *MemoryStore[T]) Save(_ context.Context, id identity.ClusterIdentity, record *Record[T]) error {
	s.records.Set(id.String(), *record)
	return nil
}

// Delete removes a read model
func (s *MemoryStore[T]) Delete(_ context.Context, id identity.ClusterIdentity) error {
	s.records.Delete(id.String())
	return nil
}

// Len returns the number of read models
func (s *MemoryStore[T]) Len() int {
	return s.records.Len()
}

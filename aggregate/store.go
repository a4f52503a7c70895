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
	"context"
	"sync"
	"time"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/identity"
)

// EventStore keeps the committed events of aggregate roots.
// This helps implement any event storage whether it is the event store backend itself, an RDBMS or a No-SQL database.
type EventStore interface {
	// ReplayEvents fetches the events of an aggregate root from a given sequence number (inclusive), in order
	ReplayEvents(ctx context.Context, id identity.ClusterIdentity, fromSequenceNumber uint64) ([]Event, error)
	// WriteEvents appends events to the stream of an aggregate root. It fails with ErrConcurrencyConflict
	// when the stream is not at expectedVersion. It returns the events as committed.
	WriteEvents(ctx context.Context, id identity.ClusterIdentity, expectedVersion uint64, events []Event) ([]Event, error)
}

// MemoryEventStore keeps in memory every event stream
type MemoryEventStore struct {
	mu      sync.Mutex
	streams map[string][]Event
}

var _ EventStore = (*MemoryEventStore)(nil)

// NewMemoryEventStore creates a new instance of MemoryEventStore
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{streams: make(map[string][]Event)}
}

// ReplayEvents fetches the events of an aggregate root from a given sequence number (inclusive)
func (s *MemoryEventStore) ReplayEvents(_ context.Context, id identity.ClusterIdentity, fromSequenceNumber uint64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[id.String()]
	if fromSequenceNumber == 0 {
		fromSequenceNumber = 1
	}
	if fromSequenceNumber > uint64(len(stream)) {
		return nil, nil
	}

	subset := make([]Event, len(stream)-int(fromSequenceNumber-1))
	copy(subset, stream[fromSequenceNumber-1:])
	return subset, nil
}

// WriteEvents appends events to the stream of an aggregate root
func (s *MemoryEventStore) WriteEvents(_ context.Context, id identity.ClusterIdentity, expectedVersion uint64, events []Event) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	stream := s.streams[key]
	if actual := uint64(len(stream)); actual != expectedVersion {
		return nil, gerrors.NewErrConcurrencyConflict(key, expectedVersion, actual)
	}

	now := time.Now()
	committed := make([]Event, len(events))
	for i, event := range events {
		event.Sequence = expectedVersion + uint64(i) + 1
		event.Occurred = now
		committed[i] = event
	}
	s.streams[key] = append(stream, committed...)
	return committed, nil
}

// Len returns the number of event streams
func (s *MemoryEventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

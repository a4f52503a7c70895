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
	"time"
)

// EventContext describes where and when an event was committed
type EventContext struct {
	// EventSourceID identifies the aggregate root instance the event was applied to
	EventSourceID string
	// PartitionID identifies the partition of the event stream the event was read from
	PartitionID string
	// EventType names the type of the event. Handlers are selected by it.
	EventType string
	// Occurred is the commit time of the event
	Occurred time.Time
	// Sequence is the position of the event in its stream. Events at or below the
	// position already applied to a read model are ignored.
	Sequence uint64
}

// Event is an event handed to a projection
type Event struct {
	Context EventContext
	// Content is the decoded event. Property key selectors read it.
	Content any
}

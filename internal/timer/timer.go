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

package timer

import (
	"sync"
	"time"
)

// State represents the current state of a Timer
type State int

const (
	// StateStopped indicates the timer is stopped.
	StateStopped State = iota
	// StateRunning indicates the timer is currently running.
	StateRunning
)

// Timer is a thread-safe deadline that can be re-armed many times.
// It wraps time.Timer with explicit Start, Touch, Stop semantics and remembers
// when it is due so callers can report how late a liveness signal is.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	expireAt time.Time
	state    State
}

// New creates a new Timer with the given duration.
// The timer is created in a stopped state and must be explicitly started using Start().
func New(duration time.Duration) *Timer {
	t := time.NewTimer(duration)
	t.Stop()
	return &Timer{
		duration: duration,
		timer:    t,
		state:    StateStopped,
	}
}

// Start starts the timer if it is currently stopped.
// Returns true if the timer was successfully started, false otherwise
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateStopped {
		return false
	}
	t.resetLocked()
	t.state = StateRunning
	return true
}

// Touch pushes the deadline one full duration into the future.
// It starts the timer when it is stopped.
func (t *Timer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.state = StateRunning
}

// Stop stops the timer. Returns false when it was already stopped.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateStopped {
		return false
	}
	t.timer.Stop()
	t.drainChannel()
	t.state = StateStopped
	return true
}

// C returns a read-only channel that receives a value when the timer expires.
func (t *Timer) C() <-chan time.Time {
	return t.timer.C
}

// State returns the current state of the timer.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns the configured duration
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// ExpireAt returns the time at which the running timer is due.
func (t *Timer) ExpireAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expireAt
}

func (t *Timer) resetLocked() {
	if !t.timer.Stop() {
		t.drainChannel()
	}
	t.expireAt = time.Now().Add(t.duration)
	t.timer.Reset(t.duration)
}

func (t *Timer) drainChannel() {
	select {
	case <-t.timer.C:
	default:
	}
}

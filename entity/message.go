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

	"github.com/tochemey/eskit/subscription"
)

type message interface {
	entityMessage()
}

// operation runs a caller function against the entity instance
type operation struct {
	ctx   context.Context
	fn    func(ctx context.Context, entity any) (any, error)
	reply chan Try[any]
}

func newOperation(ctx context.Context, fn func(ctx context.Context, entity any) (any, error)) *operation {
	return &operation{ctx: ctx, fn: fn, reply: make(chan Try[any], 1)}
}

// respond never blocks: reply is buffered and written once
func (o *operation) respond(result Try[any]) {
	o.reply <- result
}

type subscribeMessage struct {
	ctx   context.Context
	id    string
	sink  subscription.Sink
	reply chan error
}

type unsubscribeMessage struct {
	id    string
	reply chan error
}

func (m *unsubscribeMessage) respond(err error) {
	if m.reply != nil {
		m.reply <- err
	}
}

// idleMessage is enqueued by the idle timer. It is ignored when another message was
// processed since the timer was armed.
type idleMessage struct {
	generation uint64
}

type deactivateMessage struct {
	done chan struct{}
}

func (*operation) entityMessage()          {}
func (*subscribeMessage) entityMessage()   {}
func (*unsubscribeMessage) entityMessage() {}
func (*idleMessage) entityMessage()        {}
func (*deactivateMessage) entityMessage()  {}

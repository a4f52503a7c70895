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
	"time"

	"github.com/tochemey/eskit/log"
)

type config struct {
	logger             log.Logger
	bufferSize         int
	unsubscribeTimeout time.Duration
}

func newConfig(opts ...Option) *config {
	c := &config{
		logger:             log.DefaultLogger,
		unsubscribeTimeout: DefaultUnsubscribeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures an Actor
type Option func(*config)

// WithLogger sets the actor logger
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBufferSize lets up to size items wait in the output channel.
// The default is an unbuffered channel: every write waits for the consumer.
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithUnsubscribeTimeout bounds the unsubscribe request sent on cancellation
func WithUnsubscribeTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.unsubscribeTimeout = timeout
		}
	}
}

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

package reversecall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/log"
)

// RetryPolicy bounds the reconnection attempts made by Reconnect.
// The attempt budget is reset every time a connection is established.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is given
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Session groups what Reconnect needs to establish one connection after another.
type Session[A, C, Q, R any] struct {
	// NewClient creates a fresh client for every attempt.
	NewClient func() *Client[A, C, Q, R]
	Arguments A
	Handler   Handler[Q, R]
	// OnConnect is called with every accepted connect response. Optional.
	OnConnect func(response C)
	Policy    RetryPolicy
	Logger    log.Logger
}

// Reconnect keeps a reverse call connection open until ctx is cancelled.
// Lost connections, stream completions and ping timeouts are retried with backoff.
// A handshake answered with something other than a connect response, or a rejected handshake,
// is not retried and is returned.
func Reconnect[A, C, Q, R any](ctx context.Context, session Session[A, C, Q, R]) error {
	logger := session.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}

	policy := session.Policy
	if policy.MaxRetries <= 0 {
		policy = DefaultRetryPolicy()
	}

	for {
		var (
			established bool
			fatal       error
			last        error
		)

		retrier := retry.NewRetrier(policy.MaxRetries, policy.InitialDelay, policy.MaxDelay)
		_ = retrier.RunContext(ctx, func(ctx context.Context) error {
			client := session.NewClient()
			response, err := client.Connect(ctx, session.Arguments)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Stop(ctx.Err())
				}
				if errors.Is(err, gerrors.ErrDidNotReceiveConnectResponse) || errors.Is(err, gerrors.ErrConnectRejected) {
					fatal = err
					return retry.Stop(err)
				}
				logger.Warnf("reverse call connection attempt failed: %v", err)
				last = err
				return err
			}

			if session.OnConnect != nil {
				session.OnConnect(response)
			}

			err = client.Handle(ctx, session.Handler)
			established = true
			if err == nil {
				err = gerrors.ErrStreamCompleted
			}
			last = err
			// the connection was up: start over with a fresh attempt budget
			return retry.Stop(err)
		})

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case fatal != nil:
			return fatal
		case established:
			logger.Infof("reverse call connection lost: %v, reconnecting", last)
		default:
			return fmt.Errorf("failed to connect after %d attempts: %w", policy.MaxRetries, last)
		}
	}
}

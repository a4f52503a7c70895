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

// RecoveryStrategy defines what a Processor does when an event cannot be applied
type RecoveryStrategy int

const (
	// Fail returns the failure to the caller of Handle
	Fail RecoveryStrategy = iota
	// RetryAndFail retries the event and returns the failure once the retries are exhausted
	RetryAndFail
	// RetryAndSkip retries the event and drops it once the retries are exhausted
	RetryAndSkip
	// Skip drops the event and logs the failure
	Skip
)

// String returns the strategy name
func (s RecoveryStrategy) String() string {
	switch s {
	case Fail:
		return "fail"
	case RetryAndFail:
		return "retry_and_fail"
	case RetryAndSkip:
		return "retry_and_skip"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// RecoverySetting specifies the various recovery settings of a projection
type RecoverySetting struct {
	// retries specifies the number of times to retry an event before giving up
	retries int
	// retryDelay specifies the maximum delay between two attempts
	retryDelay time.Duration
	strategy   RecoveryStrategy
}

// NewRecoverySetting creates an instance of RecoverySetting
func NewRecoverySetting(options ...RecoveryOption) *RecoverySetting {
	cfg := &RecoverySetting{
		retries:    5,
		retryDelay: time.Second,
		strategy:   Fail,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// Retries returns the number of times an event is retried
func (c RecoverySetting) Retries() int {
	return c.retries
}

// RetryDelay returns the maximum delay between retry attempts
func (c RecoverySetting) RetryDelay() time.Duration {
	return c.retryDelay
}

// RecoveryStrategy returns the recovery strategy
func (c RecoverySetting) RecoveryStrategy() RecoveryStrategy {
	return c.strategy
}

// RecoveryOption configures a RecoverySetting
type RecoveryOption func(*RecoverySetting)

// WithRetries sets the number of retries
func WithRetries(retries int) RecoveryOption {
	return func(c *RecoverySetting) {
		if retries > 0 {
			c.retries = retries
		}
	}
}

// WithRetryDelay sets the maximum delay between two retries
func WithRetryDelay(delay time.Duration) RecoveryOption {
	return func(c *RecoverySetting) {
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithRecoveryStrategy sets the recovery strategy
func WithRecoveryStrategy(strategy RecoveryStrategy) RecoveryOption {
	return func(c *RecoverySetting) {
		c.strategy = strategy
	}
}

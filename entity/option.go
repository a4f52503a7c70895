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
	"time"

	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/telemetry"
	"github.com/tochemey/eskit/tenancy"
)

const (
	// DefaultIdleUnloadTimeout is how long an entity stays in memory without receiving an operation
	DefaultIdleUnloadTimeout = 2 * time.Minute
	// DefaultActivationTimeout bounds the construction of an entity instance
	DefaultActivationTimeout = 5 * time.Second
	// DefaultRequestDeduplicationWindow is how long the result of an operation carrying a request id is kept
	DefaultRequestDeduplicationWindow = 30 * time.Second
)

type engineConfig struct {
	logger              log.Logger
	provider            tenancy.Provider
	idleUnloadTimeout   time.Duration
	activationTimeout   time.Duration
	constructionRetries int
	deduplicationWindow time.Duration
	telemetry           *telemetry.Telemetry
}

func newEngineConfig(opts ...Option) *engineConfig {
	config := &engineConfig{
		logger:              log.DefaultLogger,
		provider:            tenancy.None(),
		idleUnloadTimeout:   DefaultIdleUnloadTimeout,
		activationTimeout:   DefaultActivationTimeout,
		deduplicationWindow: DefaultRequestDeduplicationWindow,
	}
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

// Option is the interface that applies an engine option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*engineConfig)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*engineConfig)

// Apply applies the option
func (f OptionFunc) Apply(c *engineConfig) {
	f(c)
}

// WithLogger sets the engine logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *engineConfig) {
		c.logger = logger
	})
}

// WithServices sets the provider resolving the tenant-scoped services handed to entity factories
func WithServices(provider tenancy.Provider) Option {
	return OptionFunc(func(c *engineConfig) {
		c.provider = provider
	})
}

// WithIdleUnloadTimeout sets how long an entity may stay idle before it is unloaded.
//   - a positive value unloads the entity after that much time without operation,
//   - zero unloads the entity right after every operation, so every operation constructs a new instance,
//   - a negative value keeps the entity until it is deactivated.
func WithIdleUnloadTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *engineConfig) {
		c.idleUnloadTimeout = timeout
	})
}

// WithActivationTimeout bounds the construction of an entity instance
func WithActivationTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *engineConfig) {
		if timeout > 0 {
			c.activationTimeout = timeout
		}
	})
}

// WithConstructionRetries sets how many times a failing factory is retried
// within one activation before the activation fails.
func WithConstructionRetries(retries int) Option {
	return OptionFunc(func(c *engineConfig) {
		if retries >= 0 {
			c.constructionRetries = retries
		}
	})
}

// WithRequestDeduplicationWindow sets how long the result of an operation carrying a request id
// is returned to retries of the same request. Zero disables deduplication.
func WithRequestDeduplicationWindow(window time.Duration) Option {
	return OptionFunc(func(c *engineConfig) {
		if window >= 0 {
			c.deduplicationWindow = window
		}
	})
}

// WithTelemetry enables metrics
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(c *engineConfig) {
		c.telemetry = tel
	})
}

// CallOption configures one Perform or PerformAndRespond call
type CallOption func(*callConfig)

type callConfig struct {
	requestID string
}

// WithRequestID tags the call with an idempotency key. Calls with the same request id
// on the same entity within the deduplication window run once and share the result.
func WithRequestID(requestID string) CallOption {
	return func(c *callConfig) {
		c.requestID = requestID
	}
}

func newCallConfig(opts ...CallOption) *callConfig {
	config := new(callConfig)
	for _, opt := range opts {
		opt(config)
	}
	return config
}

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
	"time"

	"golang.org/x/time/rate"

	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/telemetry"
)

const (
	// DefaultPingInterval is how often the backend is asked to ping the client
	DefaultPingInterval = 5 * time.Second
	// DefaultPingTimeoutFactor is the number of ping intervals without a ping after which
	// the connection is considered dead
	DefaultPingTimeoutFactor = 3
	// DefaultMaxConcurrentRequests bounds the number of requests handled at the same time
	DefaultMaxConcurrentRequests = 1
)

type clientConfig struct {
	logger                log.Logger
	pingInterval          time.Duration
	pingTimeoutFactor     int
	maxConcurrentRequests int
	requestRate           rate.Limit
	requestBurst          int
	telemetry             *telemetry.Telemetry
}

func newClientConfig(opts ...Option) *clientConfig {
	config := &clientConfig{
		logger:                log.DefaultLogger,
		pingInterval:          DefaultPingInterval,
		pingTimeoutFactor:     DefaultPingTimeoutFactor,
		maxConcurrentRequests: DefaultMaxConcurrentRequests,
	}
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

func (c *clientConfig) pingTimeout() time.Duration {
	return c.pingInterval * time.Duration(c.pingTimeoutFactor)
}

// limiter returns nil when requests are not throttled
func (c *clientConfig) limiter() *rate.Limiter {
	if c.requestRate <= 0 {
		return nil
	}
	return rate.NewLimiter(c.requestRate, max(c.requestBurst, 1))
}

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*clientConfig)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*clientConfig)

// Apply applies the option
func (f OptionFunc) Apply(c *clientConfig) {
	f(c)
}

// WithLogger sets the client logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}

// WithPingInterval sets the interval the backend is asked to ping at.
// Non-positive values are ignored.
func WithPingInterval(interval time.Duration) Option {
	return OptionFunc(func(c *clientConfig) {
		if interval > 0 {
			c.pingInterval = interval
		}
	})
}

// WithPingTimeoutFactor sets how many ping intervals may elapse without a ping
// before the connection fails. Values below one are ignored.
func WithPingTimeoutFactor(factor int) Option {
	return OptionFunc(func(c *clientConfig) {
		if factor >= 1 {
			c.pingTimeoutFactor = factor
		}
	})
}

// WithMaxConcurrentRequests sets how many requests may be handled at the same time.
// Requests received while the limit is reached wait in arrival order. Values below one are ignored.
func WithMaxConcurrentRequests(limit int) Option {
	return OptionFunc(func(c *clientConfig) {
		if limit >= 1 {
			c.maxConcurrentRequests = limit
		}
	})
}

// WithRequestRate throttles the handling of requests to perSecond requests per second,
// allowing bursts of burst requests. A non-positive rate disables throttling.
func WithRequestRate(perSecond float64, burst int) Option {
	return OptionFunc(func(c *clientConfig) {
		c.requestRate = rate.Limit(perSecond)
		c.requestBurst = burst
	})
}

// WithTelemetry enables metrics
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(c *clientConfig) {
		c.telemetry = tel
	})
}

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
	"github.com/tochemey/eskit/log"
)

type processorConfig struct {
	logger   log.Logger
	recovery *RecoverySetting
}

// Option is the interface that applies a Processor option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*processorConfig)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*processorConfig)

// Apply applies the option
func (f OptionFunc) Apply(c *processorConfig) {
	f(c)
}

// WithLogger sets the processor logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *processorConfig) {
		c.logger = logger
	})
}

// WithRecovery sets how the processor recovers from events it fails to apply
func WithRecovery(setting *RecoverySetting) Option {
	return OptionFunc(func(c *processorConfig) {
		if setting != nil {
			c.recovery = setting
		}
	})
}

func newProcessorConfig(opts ...Option) *processorConfig {
	config := &processorConfig{
		logger:   log.DefaultLogger,
		recovery: NewRecoverySetting(),
	}
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

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

package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	gerrors "github.com/tochemey/eskit/errors"
	"github.com/tochemey/eskit/entity"
	"github.com/tochemey/eskit/internal/validation"
	"github.com/tochemey/eskit/log"
	"github.com/tochemey/eskit/reversecall"
)

// DefaultEnvPrefix is the prefix of the environment variables read by FromEnv when none is given
const DefaultEnvPrefix = "ESKIT_"

// Config holds every tunable of the reverse call client and the entity engine.
// Durations are written the way time.ParseDuration reads them, for instance "5s".
type Config struct {
	// PingInterval is how often the backend is asked to ping the client
	PingInterval time.Duration `env:"PING_INTERVAL" yaml:"pingInterval"`
	// PingTimeoutFactor is the number of ping intervals without a ping after which a connection is dead
	PingTimeoutFactor int `env:"PING_TIMEOUT_FACTOR" yaml:"pingTimeoutFactor"`
	// MaxConcurrentRequests bounds the number of reverse call requests handled at the same time
	MaxConcurrentRequests int `env:"MAX_CONCURRENT_REQUESTS" yaml:"maxConcurrentRequests"`
	// RequestRate is the number of reverse call requests handled per second. Zero disables throttling.
	RequestRate  float64 `env:"REQUEST_RATE" yaml:"requestRate"`
	RequestBurst int     `env:"REQUEST_BURST" yaml:"requestBurst"`

	// IdleUnloadTimeout is how long an entity stays loaded without operation.
	// Zero unloads after every operation, a negative value never unloads.
	IdleUnloadTimeout time.Duration `env:"IDLE_UNLOAD_TIMEOUT" yaml:"idleUnloadTimeout"`
	// ActivationTimeout bounds the construction of an entity
	ActivationTimeout time.Duration `env:"ACTIVATION_TIMEOUT" yaml:"activationTimeout"`
	// ConstructionRetries is the number of attempts made to construct an entity within one activation
	ConstructionRetries int `env:"CONSTRUCTION_RETRIES" yaml:"constructionRetries"`
	// RequestDeduplicationWindow is how long the result of an operation carrying a request id is kept.
	// Zero disables deduplication.
	RequestDeduplicationWindow time.Duration `env:"REQUEST_DEDUPLICATION_WINDOW" yaml:"requestDeduplicationWindow"`

	ReconnectMaxRetries   int           `env:"RECONNECT_MAX_RETRIES" yaml:"reconnectMaxRetries"`
	ReconnectInitialDelay time.Duration `env:"RECONNECT_INITIAL_DELAY" yaml:"reconnectInitialDelay"`
	ReconnectMaxDelay     time.Duration `env:"RECONNECT_MAX_DELAY" yaml:"reconnectMaxDelay"`

	// LogLevel is one of debug, info, warn and error
	LogLevel string `env:"LOG_LEVEL" yaml:"logLevel"`
}

// Default returns the default configuration
func Default() *Config {
	policy := reversecall.DefaultRetryPolicy()
	return &Config{
		PingInterval:               reversecall.DefaultPingInterval,
		PingTimeoutFactor:          reversecall.DefaultPingTimeoutFactor,
		MaxConcurrentRequests:      reversecall.DefaultMaxConcurrentRequests,
		RequestBurst:               1,
		IdleUnloadTimeout:          entity.DefaultIdleUnloadTimeout,
		ActivationTimeout:          entity.DefaultActivationTimeout,
		RequestDeduplicationWindow: entity.DefaultRequestDeduplicationWindow,
		ReconnectMaxRetries:        policy.MaxRetries,
		ReconnectInitialDelay:      policy.InitialDelay,
		ReconnectMaxDelay:          policy.MaxDelay,
		LogLevel:                   log.InfoLevel.String(),
	}
}

// FromEnv reads the configuration from the environment variables starting with prefix,
// for instance ESKIT_PING_INTERVAL. Unset variables keep their default value.
func FromEnv(prefix string) (*Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	config := Default()
	if err := env.ParseWithOptions(config, env.Options{Prefix: prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromYAML reads the configuration from a YAML document.
// Missing fields keep their default value.
func FromYAML(reader io.Reader) (*Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load reads the configuration from the YAML file at path
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	return FromYAML(file)
}

// Validate checks the configuration and reports every violation
func (c *Config) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewPositiveDurationValidator("PingInterval", c.PingInterval)).
		AddAssertion(c.PingTimeoutFactor >= 1, "PingTimeoutFactor must be at least 1").
		AddAssertion(c.MaxConcurrentRequests >= 1, "MaxConcurrentRequests must be at least 1").
		AddAssertion(c.RequestRate >= 0, "RequestRate must not be negative").
		AddAssertion(c.RequestBurst >= 1, "RequestBurst must be at least 1").
		AddValidator(validation.NewPositiveDurationValidator("ActivationTimeout", c.ActivationTimeout)).
		AddAssertion(c.ConstructionRetries >= 0, "ConstructionRetries must not be negative").
		AddValidator(validation.NewNonNegativeDurationValidator("RequestDeduplicationWindow", c.RequestDeduplicationWindow)).
		AddAssertion(c.ReconnectMaxRetries >= 1, "ReconnectMaxRetries must be at least 1").
		AddValidator(validation.NewPositiveDurationValidator("ReconnectInitialDelay", c.ReconnectInitialDelay)).
		AddAssertion(c.ReconnectMaxDelay >= c.ReconnectInitialDelay, "ReconnectMaxDelay must not be shorter than ReconnectInitialDelay").
		AddAssertion(log.ParseLevel(c.LogLevel) != log.InvalidLevel, fmt.Sprintf("LogLevel %q is unknown", c.LogLevel))

	if err := chain.Validate(); err != nil {
		return gerrors.NewErrInvalidConfig(err)
	}
	return nil
}

// Logger returns a logger writing to os.Stdout at the configured level
func (c *Config) Logger() log.Logger {
	return log.NewZap(log.ParseLevel(c.LogLevel), os.Stdout)
}

// ClientOptions returns the reverse call client options matching the configuration
func (c *Config) ClientOptions(opts ...reversecall.Option) []reversecall.Option {
	return append([]reversecall.Option{
		reversecall.WithPingInterval(c.PingInterval),
		reversecall.WithPingTimeoutFactor(c.PingTimeoutFactor),
		reversecall.WithMaxConcurrentRequests(c.MaxConcurrentRequests),
		reversecall.WithRequestRate(c.RequestRate, c.RequestBurst),
	}, opts...)
}

// EngineOptions returns the entity engine options matching the configuration
func (c *Config) EngineOptions(opts ...entity.Option) []entity.Option {
	return append([]entity.Option{
		entity.WithIdleUnloadTimeout(c.IdleUnloadTimeout),
		entity.WithActivationTimeout(c.ActivationTimeout),
		entity.WithConstructionRetries(c.ConstructionRetries),
		entity.WithRequestDeduplicationWindow(c.RequestDeduplicationWindow),
	}, opts...)
}

// RetryPolicy returns the reconnect policy matching the configuration
func (c *Config) RetryPolicy() reversecall.RetryPolicy {
	return reversecall.RetryPolicy{
		MaxRetries:   c.ReconnectMaxRetries,
		InitialDelay: c.ReconnectInitialDelay,
		MaxDelay:     c.ReconnectMaxDelay,
	}
}

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

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReverseCallMetrics defines the reverse call client instrumentation
type ReverseCallMetrics struct {
	connections  metric.Int64Counter
	requests     metric.Int64Counter
	failures     metric.Int64Counter
	pingTimeouts metric.Int64Counter
}

// NewReverseCallMetrics creates an instance of ReverseCallMetrics
func NewReverseCallMetrics(meter metric.Meter) (*ReverseCallMetrics, error) {
	metrics := new(ReverseCallMetrics)
	var err error
	if metrics.connections, err = meter.Int64Counter(
		"reversecall_connections_count",
		metric.WithDescription("Total number of successful reverse call handshakes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create connections instrument, %w", err)
	}

	if metrics.requests, err = meter.Int64Counter(
		"reversecall_requests_count",
		metric.WithDescription("Total number of requests handled"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requests instrument, %w", err)
	}

	if metrics.failures, err = meter.Int64Counter(
		"reversecall_failed_requests_count",
		metric.WithDescription("Total number of requests answered with a failure"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failures instrument, %w", err)
	}

	if metrics.pingTimeouts, err = meter.Int64Counter(
		"reversecall_ping_timeouts_count",
		metric.WithDescription("Total number of connections closed because no ping was received in time"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pingTimeouts instrument, %w", err)
	}
	return metrics, nil
}

// RecordConnected records a successful handshake
func (x *ReverseCallMetrics) RecordConnected(ctx context.Context) {
	if x == nil {
		return
	}
	x.connections.Add(ctx, 1)
}

// RecordRequest records a handled request
func (x *ReverseCallMetrics) RecordRequest(ctx context.Context, failed bool) {
	if x == nil {
		return
	}
	x.requests.Add(ctx, 1)
	if failed {
		x.failures.Add(ctx, 1)
	}
}

// RecordPingTimeout records a missed ping deadline
func (x *ReverseCallMetrics) RecordPingTimeout(ctx context.Context) {
	if x == nil {
		return
	}
	x.pingTimeouts.Add(ctx, 1)
}

// EntityMetrics defines the entity engine instrumentation
type EntityMetrics struct {
	activations          metric.Int64Counter
	passivations         metric.Int64Counter
	constructionFailures metric.Int64Counter
	operationDuration    metric.Float64Histogram
}

// NewEntityMetrics creates an instance of EntityMetrics
func NewEntityMetrics(meter metric.Meter) (*EntityMetrics, error) {
	metrics := new(EntityMetrics)
	var err error
	if metrics.activations, err = meter.Int64Counter(
		"entity_activations_count",
		metric.WithDescription("Total number of entity instances constructed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activations instrument, %w", err)
	}

	if metrics.passivations, err = meter.Int64Counter(
		"entity_passivations_count",
		metric.WithDescription("Total number of entity instances unloaded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create passivations instrument, %w", err)
	}

	if metrics.constructionFailures, err = meter.Int64Counter(
		"entity_construction_failures_count",
		metric.WithDescription("Total number of failed entity constructions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create constructionFailures instrument, %w", err)
	}

	if metrics.operationDuration, err = meter.Float64Histogram(
		"entity_operation_duration",
		metric.WithDescription("The latency of entity operations in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operationDuration instrument, %w", err)
	}
	return metrics, nil
}

// RecordActivation records the construction of an entity of the given kind
func (x *EntityMetrics) RecordActivation(ctx context.Context, kind string) {
	if x == nil {
		return
	}
	x.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("entity.kind", kind)))
}

// RecordPassivation records the unloading of an entity of the given kind
func (x *EntityMetrics) RecordPassivation(ctx context.Context, kind string) {
	if x == nil {
		return
	}
	x.passivations.Add(ctx, 1, metric.WithAttributes(attribute.String("entity.kind", kind)))
}

// RecordConstructionFailure records a failed construction of an entity of the given kind
func (x *EntityMetrics) RecordConstructionFailure(ctx context.Context, kind string) {
	if x == nil {
		return
	}
	x.constructionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("entity.kind", kind)))
}

// RecordOperation records the latency of one entity operation
func (x *EntityMetrics) RecordOperation(ctx context.Context, kind string, duration time.Duration, failed bool) {
	if x == nil {
		return
	}
	x.operationDuration.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(
			attribute.String("entity.kind", kind),
			attribute.Bool("failed", failed),
		))
}

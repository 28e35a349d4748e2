// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability exposes runtime metrics through an OpenTelemetry
// meter backed by a Prometheus exporter. The /metrics endpoint serves the
// exporter's default registry.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the runtime instruments. A nil *Metrics is a no-op, so call
// sites never nil-check individual instruments.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
	tasksCreated  metric.Int64Counter
	tasksFinished metric.Int64Counter
	activeTasks   metric.Int64UpDownCounter
	pushDelivered metric.Int64Counter
}

// InitMetrics builds the meter provider with a Prometheus reader and creates
// the runtime instruments.
func InitMetrics(agentName string) (*Metrics, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := provider.Meter("bindu")

	httpRequests, err := meter.Int64Counter(
		"bindu_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"bindu_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	tasksCreated, err := meter.Int64Counter(
		"bindu_tasks_created_total",
		metric.WithDescription("Total tasks created"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks created counter: %w", err)
	}

	tasksFinished, err := meter.Int64Counter(
		"bindu_tasks_finished_total",
		metric.WithDescription("Total tasks reaching a terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks finished counter: %w", err)
	}

	activeTasks, err := meter.Int64UpDownCounter(
		"bindu_active_tasks",
		metric.WithDescription("Tasks currently between submission and a terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active tasks gauge: %w", err)
	}

	pushDelivered, err := meter.Int64Counter(
		"bindu_push_deliveries_total",
		metric.WithDescription("Total webhook delivery attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create push deliveries counter: %w", err)
	}

	return &Metrics{
		provider:      provider,
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		tasksCreated:  tasksCreated,
		tasksFinished: tasksFinished,
		activeTasks:   activeTasks,
		pushDelivered: pushDelivered,
	}, nil
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// TaskCreated bumps the creation counter and the active gauge.
func (m *Metrics) TaskCreated(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	m.tasksCreated.Add(ctx, 1, attrs)
	m.activeTasks.Add(ctx, 1, attrs)
}

// TaskFinished bumps the terminal counter and releases the active gauge.
func (m *Metrics) TaskFinished(ctx context.Context, agent, state string) {
	if m == nil {
		return
	}
	m.tasksFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("state", state),
	))
	m.activeTasks.Add(ctx, -1, metric.WithAttributes(attribute.String("agent", agent)))
}

// PushDelivered records one webhook delivery attempt.
func (m *Metrics) PushDelivered(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.pushDelivered.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

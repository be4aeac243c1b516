// Copyright 2025 Tom Barlow
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

package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Collector records the SDK's own operational metrics, exposed through the
// Prometheus registry.
type Collector struct {
	spansExported     metric.Int64Counter
	payloadsBuilt     metric.Int64Counter
	payloadFallbacks  metric.Int64Counter
	payloadsDelivered metric.Int64Counter
	deliveries        metric.Int64Counter
	deliveryRetries   metric.Int64Counter
	deliveryFailures  metric.Int64Counter

	deliveryDuration metric.Float64Histogram
}

// NewCollector creates a collector backed by the given meter provider.
func NewCollector(provider metric.MeterProvider) (*Collector, error) {
	meter := provider.Meter(telemetry.ScopeName)

	c := &Collector{}
	var err error

	c.spansExported, err = meter.Int64Counter(
		"spyglass_spans_exported_total",
		metric.WithDescription("Spans handed to the export pipeline"),
		metric.WithUnit("{span}"),
	)
	if err != nil {
		return nil, err
	}

	c.payloadsBuilt, err = meter.Int64Counter(
		"spyglass_payloads_built_total",
		metric.WithDescription("Normalized payloads produced"),
		metric.WithUnit("{payload}"),
	)
	if err != nil {
		return nil, err
	}

	c.payloadFallbacks, err = meter.Int64Counter(
		"spyglass_payload_fallbacks_total",
		metric.WithDescription("Payloads that failed primary validation and used a fallback"),
		metric.WithUnit("{payload}"),
	)
	if err != nil {
		return nil, err
	}

	c.payloadsDelivered, err = meter.Int64Counter(
		"spyglass_payloads_delivered_total",
		metric.WithDescription("Payloads accepted by the ingest endpoint"),
		metric.WithUnit("{payload}"),
	)
	if err != nil {
		return nil, err
	}

	c.deliveries, err = meter.Int64Counter(
		"spyglass_deliveries_total",
		metric.WithDescription("Batch delivery outcomes by status"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	c.deliveryRetries, err = meter.Int64Counter(
		"spyglass_delivery_retries_total",
		metric.WithDescription("Delivery attempts beyond the first"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	c.deliveryFailures, err = meter.Int64Counter(
		"spyglass_delivery_failures_total",
		metric.WithDescription("Batches dropped after exhausting retries or a terminal rejection"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	c.deliveryDuration, err = meter.Float64Histogram(
		"spyglass_delivery_duration_seconds",
		metric.WithDescription("Wall time spent delivering a batch, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// SpansExported counts spans entering the export pipeline.
func (c *Collector) SpansExported(n int) {
	c.spansExported.Add(context.Background(), int64(n))
}

// PayloadBuilt counts a produced payload, flagging fallback payloads.
func (c *Collector) PayloadBuilt(fallback bool) {
	ctx := context.Background()
	c.payloadsBuilt.Add(ctx, 1)
	if fallback {
		c.payloadFallbacks.Add(ctx, 1)
	}
}

// DeliverySucceeded records a successful batch delivery of the given number
// of payloads.
func (c *Collector) DeliverySucceeded(payloads int, elapsed time.Duration) {
	ctx := context.Background()
	c.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	c.payloadsDelivered.Add(ctx, int64(payloads))
	c.deliveryDuration.Record(ctx, elapsed.Seconds())
}

// DeliveryFailed records a dropped batch.
func (c *Collector) DeliveryFailed(terminal bool, elapsed time.Duration) {
	ctx := context.Background()
	outcome := "exhausted"
	if terminal {
		outcome = "rejected"
	}
	c.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	c.deliveryFailures.Add(ctx, 1)
	c.deliveryDuration.Record(ctx, elapsed.Seconds())
}

// DeliveryRetried records one retry attempt.
func (c *Collector) DeliveryRetried() {
	c.deliveryRetries.Add(context.Background(), 1)
}

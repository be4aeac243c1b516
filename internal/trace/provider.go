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

// Package trace assembles the OpenTelemetry tracer and meter providers the
// SDK runs on.
package trace

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// ProviderConfig configures provider assembly.
type ProviderConfig struct {
	// AppName is reported as the OTel service name.
	AppName string

	// Processor receives every span; normally the route.Router.
	Processor sdktrace.SpanProcessor

	// Sampler gates trace recording; nil means always sample.
	Sampler sdktrace.Sampler

	// EnableMetrics turns on the Prometheus-backed meter provider and the
	// SDK's operational metrics.
	EnableMetrics bool
}

// Provider owns the tracer provider, the meter provider and the SDK's
// metrics collector.
type Provider struct {
	tp        *sdktrace.TracerProvider
	mp        *sdkmetric.MeterProvider
	collector *Collector
}

// NewProvider assembles the providers. The span processor is mounted as-is;
// batching policy belongs to whoever built the processor.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("trace: span processor is required")
	}
	appName := cfg.AppName
	if appName == "" {
		appName = telemetry.ScopeName
	}

	// Empty schema URL so the merge with the default resource never hits a
	// schema conflict as the SDK's semconv version drifts.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(appName),
			semconv.ServiceVersion(telemetry.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace: build resource: %w", err)
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSpanProcessor(cfg.Processor),
	)

	p := &Provider{tp: tp}

	if cfg.EnableMetrics {
		promExporter, err := prometheus.New()
		if err != nil {
			tp.Shutdown(context.Background())
			return nil, fmt.Errorf("trace: prometheus exporter: %w", err)
		}
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(promExporter),
		)
		p.collector, err = NewCollector(p.mp)
		if err != nil {
			tp.Shutdown(context.Background())
			return nil, fmt.Errorf("trace: metrics collector: %w", err)
		}
	}

	return p, nil
}

// Tracer returns a tracer under the SDK instrumentation scope.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(telemetry.ScopeName,
		trace.WithInstrumentationVersion(telemetry.Version))
}

// TracerProvider exposes the underlying provider for instrumentations that
// need to create their own tracers.
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.tp
}

// Collector returns the metrics collector, nil when metrics are disabled.
func (p *Provider) Collector() *Collector {
	return p.collector
}

// MetricsHandler returns the Prometheus scrape handler. The OTel prometheus
// exporter registers with the default registry, so promhttp.Handler serves
// it. Returns nil when metrics are disabled.
func (p *Provider) MetricsHandler() http.Handler {
	if p.mp == nil {
		return nil
	}
	return promhttp.Handler()
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.ForceFlush(ctx)
	}
	return nil
}

// Shutdown flushes pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.Shutdown(ctx)
	}
	return nil
}

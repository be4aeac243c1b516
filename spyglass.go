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

package spyglass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tombee/spyglass/internal/config"
	"github.com/tombee/spyglass/internal/export"
	"github.com/tombee/spyglass/internal/instrument"
	"github.com/tombee/spyglass/internal/log"
	"github.com/tombee/spyglass/internal/redact"
	"github.com/tombee/spyglass/internal/route"
	"github.com/tombee/spyglass/internal/session"
	"github.com/tombee/spyglass/internal/storage"
	"github.com/tombee/spyglass/internal/trace"
	"github.com/tombee/spyglass/pkg/llm"
)

// Client is the assembled SDK. Every dependency is owned by the client
// instance; nothing is installed globally, so multiple clients can coexist
// in one process and tests get full isolation.
type Client struct {
	cfg      config.Config
	logger   *slog.Logger
	provider *trace.Provider
	router   *route.Router
	ingest   *export.Ingest
	sessions *session.Tracker
	store    *storage.Store
}

// New assembles a client from environment configuration plus options.
// The returned client is ready to trace; callers must Shutdown to flush.
func New(opts ...Option) (*Client, error) {
	settings := newSettings()
	for _, opt := range opts {
		opt(settings)
	}

	if settings.cfgErr != nil {
		return nil, settings.cfgErr
	}
	cfg := settings.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := settings.logger
	if logger == nil {
		logger = log.New(&log.Config{Level: cfg.LogLevel, Format: log.FormatText})
	}

	c := &Client{cfg: cfg, logger: logger}

	// Export options shared by every payload-producing destination.
	exportOpts := []export.Option{export.WithContentCapture(cfg.CaptureContent)}
	if settings.redaction != RedactionNone {
		exportOpts = append(exportOpts, export.WithRedactor(redact.New(redact.Mode(settings.redaction))))
	}

	// Default destination: the ingest exporter, unless overridden.
	defaultExporter := settings.exporter
	if defaultExporter == nil {
		ingest, err := export.NewIngest(export.IngestConfig{
			Endpoint:          cfg.Endpoint,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Delivery.Timeout,
			MaxRetries:        cfg.Delivery.MaxRetries,
			BaseDelay:         cfg.Delivery.BaseDelay,
			MaxDelay:          cfg.Delivery.MaxDelay,
			RequestsPerSecond: cfg.Delivery.RequestsPerSecond,
		}, settings.httpClient, logger, exportOpts...)
		if err != nil {
			return nil, err
		}
		c.ingest = ingest
		defaultExporter = ingest
	}

	c.router = route.NewRouter(c.newProcessor(defaultExporter), logger)

	// Local store destination, when configured.
	if cfg.StorePath != "" {
		store, err := storage.Open(storage.Config{Path: cfg.StorePath})
		if err != nil {
			return nil, fmt.Errorf("spyglass: open local store: %w", err)
		}
		c.store = store
		storeRoute := route.Route{
			Name:      "store",
			Processor: c.newProcessor(export.NewStoreExporter(store, logger, exportOpts...)),
		}
		if err := c.router.AddRoute(storeRoute); err != nil {
			store.Close()
			return nil, err
		}
	}

	// User-declared routes.
	for _, r := range settings.routes {
		target := route.Route{
			Name:      r.name,
			Processor: c.newProcessor(r.exporter),
			Priority:  r.priority,
		}
		if r.expression != "" {
			pred, err := route.CompilePredicate(r.expression)
			if err != nil {
				return nil, fmt.Errorf("spyglass: route %q: %w", r.name, err)
			}
			target.Predicate = pred
		} else {
			target.Predicate = r.predicate
		}
		if err := c.router.AddRoute(target); err != nil {
			return nil, err
		}
	}

	provider, err := trace.NewProvider(trace.ProviderConfig{
		AppName:       cfg.AppName,
		Processor:     c.router,
		Sampler:       trace.NewSampler(trace.SamplerConfig(cfg.Sampling)),
		EnableMetrics: settings.selfMetrics,
	})
	if err != nil {
		return nil, err
	}
	c.provider = provider

	if collector := provider.Collector(); collector != nil && c.ingest != nil {
		c.ingest.SetMetrics(collector)
	}

	loaded := instrument.Default().LoadAll(
		provider.TracerProvider(), cfg.DisabledInstrumentations, logger)
	logger.Debug("spyglass initialized",
		"app_name", cfg.AppName, "instrumentations", loaded, "routes", c.router.RouteNames())

	c.sessions = session.NewTracker(c.ingest, logger)
	return c, nil
}

// newProcessor wraps an exporter per the batching configuration.
func (c *Client) newProcessor(exporter sdktrace.SpanExporter) sdktrace.SpanProcessor {
	if !c.cfg.Batch {
		return sdktrace.NewSimpleSpanProcessor(exporter)
	}
	return sdktrace.NewBatchSpanProcessor(exporter,
		sdktrace.WithMaxExportBatchSize(c.cfg.BatchSize),
		sdktrace.WithBatchTimeout(c.cfg.BatchInterval),
	)
}

// Tracer returns a tracer under the SDK's instrumentation scope, for manual
// spans beyond the Workflow/Task/Agent/Tool helpers.
func (c *Client) Tracer() oteltrace.Tracer {
	return c.provider.Tracer()
}

// TracerProvider exposes the underlying provider for third-party
// instrumentation libraries.
func (c *Client) TracerProvider() oteltrace.TracerProvider {
	return c.provider.TracerProvider()
}

// WrapProvider instruments an LLM provider so its calls are traced and
// exported.
func (c *Client) WrapProvider(p llm.Provider) llm.Provider {
	return instrument.WrapProvider(p, c.provider.TracerProvider())
}

// Sessions returns the hook-driven agent session tracker.
func (c *Client) Sessions() *session.Tracker {
	return c.sessions
}

// Store returns the local payload store, nil unless a store path was
// configured.
func (c *Client) Store() *storage.Store {
	return c.store
}

// MetricsHandler returns the Prometheus scrape handler, nil unless self
// metrics were enabled.
func (c *Client) MetricsHandler() http.Handler {
	return c.provider.MetricsHandler()
}

// ForceFlush synchronously drains every destination.
func (c *Client) ForceFlush(ctx context.Context) error {
	return c.provider.ForceFlush(ctx)
}

// Shutdown flushes pending telemetry and releases all resources. The client
// must not be used afterwards.
func (c *Client) Shutdown(ctx context.Context) error {
	err := c.provider.Shutdown(ctx)
	if c.store != nil {
		if cerr := c.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

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

// Package export provides span exporters for the spyglass pipeline: the
// ingest exporter that delivers normalized payloads to the platform, plus
// console and OTLP destinations for additional routes.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// IngestConfig configures the ingest exporter.
type IngestConfig struct {
	// Endpoint is the ingestion URL payload batches are POSTed to.
	Endpoint string

	// APIKey is sent as a Bearer token on every request.
	APIKey string

	// Timeout bounds each individual delivery attempt.
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after the initial try.
	// A batch is attempted at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay is the first retry backoff; each subsequent retry doubles
	// it up to MaxDelay. A +-10% jitter is applied to every delay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// RequestsPerSecond rate-limits outbound delivery. Zero disables
	// limiting.
	RequestsPerSecond float64
}

// Validate checks the configuration for usable values.
func (c IngestConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("ingest: endpoint is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("ingest: max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("ingest: base delay must be positive, got %s", c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("ingest: max delay %s is below base delay %s", c.MaxDelay, c.BaseDelay)
	}
	return nil
}

// terminalError marks a delivery failure that retrying cannot fix, such as a
// rejected payload or bad credentials.
type terminalError struct {
	status int
}

func (e *terminalError) Error() string {
	return fmt.Sprintf("ingest rejected batch: status %d", e.status)
}

// Ingest exports spans to the spyglass ingestion API. Each export batch is
// filtered, deduplicated, normalized into payloads, and delivered as a single
// JSON POST with retry on transient failures.
type Ingest struct {
	cfg      IngestConfig
	client   *http.Client
	pipeline *pipeline
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ sdktrace.SpanExporter = (*Ingest)(nil)

// NewIngest creates the ingest exporter. A nil client gets the package's
// pooled TLS client; a nil logger discards.
func NewIngest(cfg IngestConfig, client *http.Client, logger *slog.Logger, opts ...Option) (*Ingest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout, logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Ingest{
		cfg:      cfg,
		client:   client,
		pipeline: newPipeline(logger, opts...),
		limiter:  limiter,
		logger:   logger.With("component", "ingest"),
	}, nil
}

// SetMetrics installs an operational metrics sink. Called once during client
// assembly, before any spans flow; not safe for concurrent use with exports.
func (e *Ingest) SetMetrics(m DeliveryMetrics) {
	e.pipeline.metrics = m
}

// ExportSpans converts a batch of finished spans into payloads and delivers
// them. Spans that are not recognizable SDK telemetry are dropped here as a
// second line of defense for callers that mount the exporter without the
// router in front of it.
func (e *Ingest) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return e.Deliver(ctx, e.pipeline.run(spans))
}

// Deliver sends pre-built payloads through the retry path. Used by the
// session tracker, whose records are synthesized rather than captured from
// live spans.
func (e *Ingest) Deliver(ctx context.Context, payloads []*telemetry.Payload) error {
	if len(payloads) == 0 {
		return nil
	}

	body, err := json.Marshal(telemetry.Batch{Data: payloads})
	if err != nil {
		return fmt.Errorf("ingest: encode batch: %w", err)
	}

	return e.deliver(ctx, body, len(payloads))
}

// deliver POSTs a batch with exponential backoff. Client errors (4xx) are
// terminal; server errors (5xx) and transport failures are retried up to
// MaxRetries additional attempts.
func (e *Ingest) deliver(ctx context.Context, body []byte, count int) error {
	metrics := e.pipeline.metrics
	started := time.Now()
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if metrics != nil {
				metrics.DeliveryRetried()
			}
			delay := backoff(e.cfg.BaseDelay, e.cfg.MaxDelay, attempt)
			e.logger.Debug("retrying batch delivery",
				"attempt", attempt, "delay", delay, "payloads", count)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := e.send(ctx, body)
		if err == nil {
			if metrics != nil {
				metrics.DeliverySucceeded(count, time.Since(started))
			}
			e.logger.Debug("batch delivered", "payloads", count, "attempt", attempt)
			return nil
		}

		var terminal *terminalError
		if errors.As(err, &terminal) {
			if metrics != nil {
				metrics.DeliveryFailed(true, time.Since(started))
			}
			e.logger.Warn("batch rejected, not retrying",
				"status", terminal.status, "spans", count)
			return err
		}

		lastErr = err
		e.logger.Warn("batch delivery failed",
			"attempt", attempt, "spans", count, "error", err)
	}

	if metrics != nil {
		metrics.DeliveryFailed(false, time.Since(started))
	}
	return fmt.Errorf("ingest: gave up after %d attempts: %w", e.cfg.MaxRetries+1, lastErr)
}

// send performs a single delivery attempt under its own timeout.
func (e *Ingest) send(ctx context.Context, body []byte) error {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &terminalError{status: resp.StatusCode}
	default:
		return fmt.Errorf("server error: status %d", resp.StatusCode)
	}
}

// Shutdown releases pooled connections. Pending batches are flushed by the
// owning span processor before it calls Shutdown.
func (e *Ingest) Shutdown(ctx context.Context) error {
	e.client.CloseIdleConnections()
	return ctx.Err()
}

// backoff computes the delay before retry n (1-based): base doubled per
// retry, capped, with +-10% jitter so synchronized clients spread out.
func backoff(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(float64(delay) * jitter)
}

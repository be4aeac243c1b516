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

package export

import (
	"log/slog"
	"slices"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/spyglass/internal/convert"
	"github.com/tombee/spyglass/internal/filter"
	"github.com/tombee/spyglass/internal/payload"
	"github.com/tombee/spyglass/internal/redact"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// DeliveryMetrics receives operational counters from the export pipeline.
// Satisfied by the trace package's Collector; nil-safe throughout.
type DeliveryMetrics interface {
	SpansExported(n int)
	PayloadBuilt(fallback bool)
	DeliverySucceeded(payloads int, elapsed time.Duration)
	DeliveryFailed(terminal bool, elapsed time.Duration)
	DeliveryRetried()
}

// Option adjusts how exporters normalize payloads.
type Option func(*pipeline)

// WithMetrics installs an operational metrics sink.
func WithMetrics(m DeliveryMetrics) Option {
	return func(p *pipeline) { p.metrics = m }
}

// WithRedactor installs a payload redactor run after normalization.
func WithRedactor(r *redact.Redactor) Option {
	return func(p *pipeline) { p.redactor = r }
}

// WithContentCapture controls whether message content leaves the process.
// When disabled, prompts, completions and tool arguments are stripped from
// every payload; token accounting and timing are unaffected.
func WithContentCapture(enabled bool) Option {
	return func(p *pipeline) { p.captureContent = enabled }
}

// pipeline is the span-to-payload stage shared by the ingest and store
// exporters: filter, dedupe, build, redact.
type pipeline struct {
	builder        *payload.Builder
	redactor       *redact.Redactor
	metrics        DeliveryMetrics
	captureContent bool
}

func newPipeline(logger *slog.Logger, opts ...Option) *pipeline {
	p := &pipeline{
		builder:        payload.NewBuilder(logger),
		captureContent: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run converts a batch of finished spans into normalized payloads. Spans not
// recognizable as SDK telemetry are dropped; wrapper/detail pairs collapse
// to one payload each.
func (p *pipeline) run(spans []sdktrace.ReadOnlySpan) []*telemetry.Payload {
	if p.metrics != nil {
		p.metrics.SpansExported(len(spans))
	}
	converted := convert.FromReadOnlyBatch(spans)

	// Batches arrive in end order; payload consumers expect start order.
	slices.SortStableFunc(converted, func(a, b *telemetry.Span) int {
		return a.StartTime.Compare(b.StartTime)
	})

	relevant := converted[:0]
	for _, span := range converted {
		if filter.Relevant(span) {
			relevant = append(relevant, span)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	kept, siblings := filter.Dedupe(relevant)

	payloads := make([]*telemetry.Payload, 0, len(kept))
	for _, span := range kept {
		built := p.builder.Build(span, siblings[span])
		if p.metrics != nil {
			_, fellBack := built.Metadata["validation_error"]
			p.metrics.PayloadBuilt(fellBack)
		}
		if !p.captureContent {
			redact.StripContent(built)
		} else if p.redactor != nil {
			p.redactor.Payload(built)
		}
		payloads = append(payloads, built)
	}
	return payloads
}

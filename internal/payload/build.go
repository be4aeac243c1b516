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

// Package payload assembles normalized payload records from finalized spans.
//
// Building is a pure transform: parsers and the classifier feed every field,
// then the record is validated against the versioned schema. Validation
// failure degrades through a fallback cascade instead of dropping data; the
// builder always returns a payload that passed some level of the cascade.
package payload

import (
	"log/slog"
	"time"

	"github.com/tombee/spyglass/internal/classify"
	"github.com/tombee/spyglass/internal/parse"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// placeholderModel appears on last-resort minimal payloads where no model
// identity could be recovered.
const placeholderModel = "unknown"

// Builder turns spans into schema-valid payloads.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a payload builder. A nil logger disables diagnostics.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger.With("component", "payload")}
}

// Build assembles and validates the payload for span. Sibling spans from the
// same logical operation (the wrapper halves collapsed by deduplication) are
// consulted for fields the primary span does not carry.
//
// Build never returns nil and never fails: if the primary payload does not
// validate, a fallback payload embedding the raw record is attempted, and if
// even that fails a minimal payload carrying the validation error and the
// original identifiers is emitted.
func (b *Builder) Build(span *telemetry.Span, siblings []*telemetry.Span) *telemetry.Payload {
	p := b.assemble(span, siblings)

	if err := validate(p); err == nil {
		return p
	} else if fallback := b.fallback(span, p, err); fallback != nil {
		return fallback
	} else {
		return b.minimal(span, err)
	}
}

// assemble populates every payload field from the parsers and classifier.
func (b *Builder) assemble(span *telemetry.Span, siblings []*telemetry.Span) *telemetry.Payload {
	merged := merge(span, siblings)

	p := &telemetry.Payload{
		Schema:   telemetry.SchemaVersion,
		TraceID:  span.TraceID,
		SpanID:   span.SpanID,
		ParentID: span.ParentID,
		SpanName: span.Name,
		LogType:  classify.Classify(merged),

		StartTime: span.StartTime,
		EndTime:   span.EndTime,
		Latency:   span.Duration().Seconds(),

		StatusCode:   parse.StatusCode(merged),
		Error:        span.Err(),
		ErrorMessage: span.Status.Message,
	}

	if ttft, ok := parse.TimeToFirstToken(merged); ok {
		p.TimeToFirstToken = &ttft
	}

	p.PromptMessages = parse.PromptMessages(merged)
	if msgs := parse.CompletionMessages(merged); len(msgs) > 0 {
		p.CompletionMessage = &msgs[0]
		p.CompletionMessages = msgs
	}
	if text, ok := parse.PromptText(merged); ok {
		p.Input = text
	}
	if text, ok := parse.CompletionText(merged); ok {
		p.Output = text
	}
	p.ToolCalls = parse.ToolCalls(merged)
	p.ToolChoice = parse.ToolChoice(merged)
	p.Tools = parse.Tools(merged)

	usage := parse.Tokens(merged)
	p.PromptTokens = usage.PromptTokens
	p.CompletionTokens = usage.CompletionTokens
	p.TotalTokens = usage.TotalTokens
	p.CacheCreationTokens = usage.CacheCreationTokens
	p.CacheReadTokens = usage.CacheReadTokens

	if cost, ok := parse.Cost(merged, usage); ok {
		p.Cost = &cost
	}

	if model, ok := parse.Model(merged); ok {
		p.Model = model
	} else {
		// Structural spans (workflow/task/agent wrappers) legitimately have
		// no model; the schema still requires the field.
		p.Model = placeholderModel
	}

	p.Metadata = parse.Metadata(merged)

	return p
}

// merge overlays attributes missing on the primary span from its siblings.
// The primary span's own attributes always win.
func merge(span *telemetry.Span, siblings []*telemetry.Span) *telemetry.Span {
	if len(siblings) == 0 {
		return span
	}

	attrs := make(map[string]any, len(span.Attributes))
	for _, sibling := range siblings {
		for k, v := range sibling.Attributes {
			attrs[k] = v
		}
	}
	for k, v := range span.Attributes {
		attrs[k] = v
	}

	out := *span
	out.Attributes = attrs
	return &out
}

// fallback wraps the unvalidated record in a degraded payload and revalidates.
// Returns nil if the fallback does not validate either.
func (b *Builder) fallback(span *telemetry.Span, failed *telemetry.Payload, cause error) *telemetry.Payload {
	p := &telemetry.Payload{
		Schema:      telemetry.SchemaVersion,
		TraceID:     span.TraceID,
		SpanID:      span.SpanID,
		ParentID:    span.ParentID,
		SpanName:    span.Name,
		LogType:     telemetry.LogTypeUnknown,
		StartTime:   span.StartTime,
		EndTime:     span.EndTime,
		Latency:     span.Duration().Seconds(),
		Model:       placeholderModel,
		StatusCode:  parse.StatusCode(span),
		Error:       span.Err(),
		FullRequest: failed,
		Metadata: map[string]any{
			"validation_error": cause.Error(),
		},
	}

	if err := validate(p); err != nil {
		b.logger.Debug("fallback payload failed validation",
			"trace_id", span.TraceID, "span_id", span.SpanID, "error", err)
		return nil
	}

	b.logger.Debug("payload degraded to fallback",
		"trace_id", span.TraceID, "span_id", span.SpanID, "cause", cause.Error())
	return p
}

// minimal is the last resort: placeholder content, zero usage, but the trace
// and span identifiers and the validation error are always preserved so the
// record remains attributable. Export never hard-fails on a span.
func (b *Builder) minimal(span *telemetry.Span, cause error) *telemetry.Payload {
	zero := 0
	start := span.StartTime
	end := span.EndTime
	if start.IsZero() {
		start = span.EndTime
	}
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() || end.Before(start) {
		end = start
	}

	b.logger.Warn("payload degraded to minimal record",
		"trace_id", span.TraceID, "span_id", span.SpanID, "error", cause)

	return &telemetry.Payload{
		Schema:         telemetry.SchemaVersion,
		TraceID:        orPlaceholder(span.TraceID),
		SpanID:         orPlaceholder(span.SpanID),
		SpanName:       span.Name,
		LogType:        telemetry.LogTypeUnknown,
		StartTime:      start,
		EndTime:        end,
		Model:          placeholderModel,
		PromptMessages: []telemetry.Message{{Role: "user", Content: ""}},
		PromptTokens:   &zero,
		StatusCode:     200,
		Metadata: map[string]any{
			"validation_error":  cause.Error(),
			"original_trace_id": span.TraceID,
			"original_span_id":  span.SpanID,
		},
	}
}

func orPlaceholder(id string) string {
	if id == "" {
		return "invalid"
	}
	return id
}

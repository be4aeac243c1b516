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

// Package convert bridges OpenTelemetry SDK span types to the telemetry data
// model consumed by the rest of the pipeline.
package convert

import (
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// FromReadOnly converts a finalized OpenTelemetry span into the immutable
// telemetry view. Conversion is loss-tolerant: only the fields the pipeline
// consumes are carried over.
func FromReadOnly(ro sdktrace.ReadOnlySpan) *telemetry.Span {
	span := &telemetry.Span{
		TraceID:   ro.SpanContext().TraceID().String(),
		SpanID:    ro.SpanContext().SpanID().String(),
		Name:      ro.Name(),
		ScopeName: ro.InstrumentationScope().Name,
		StartTime: ro.StartTime(),
		EndTime:   ro.EndTime(),
	}

	if ro.Parent().IsValid() {
		span.ParentID = ro.Parent().SpanID().String()
	}

	status := ro.Status()
	switch status.Code {
	case codes.Ok:
		span.Status.Code = telemetry.StatusCodeOK
	case codes.Error:
		span.Status.Code = telemetry.StatusCodeError
		span.Status.Message = status.Description
	default:
		span.Status.Code = telemetry.StatusCodeUnset
	}

	span.Attributes = make(map[string]any, len(ro.Attributes()))
	for _, attr := range ro.Attributes() {
		span.Attributes[string(attr.Key)] = attr.Value.AsInterface()
	}

	return span
}

// FromReadOnlyBatch converts a batch preserving order.
func FromReadOnlyBatch(ros []sdktrace.ReadOnlySpan) []*telemetry.Span {
	spans := make([]*telemetry.Span, 0, len(ros))
	for _, ro := range ros {
		spans = append(spans, FromReadOnly(ro))
	}
	return spans
}

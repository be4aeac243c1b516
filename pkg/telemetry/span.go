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

// Package telemetry defines the data model shared across the Spyglass SDK:
// the finalized span view handed to filters, classifiers, and exporters, and
// the normalized payload record delivered to the ingestion backend.
// This package is deliberately free of OpenTelemetry imports so that it can be
// embedded in applications that bring their own tracing substrate.
package telemetry

import (
	"time"
)

// Span is an immutable view of a finalized tracing span.
// It is constructed once by the SDK when the underlying tracing runtime ends
// a span, and is never mutated afterwards.
type Span struct {
	// TraceID uniquely identifies the enclosing trace.
	TraceID string

	// SpanID uniquely identifies this span within the trace.
	SpanID string

	// ParentID is the SpanID of the parent span. Empty for root spans.
	ParentID string

	// Name is the span's operation name.
	Name string

	// ScopeName is the instrumentation scope that produced the span.
	ScopeName string

	// StartTime is when the operation began.
	StartTime time.Time

	// EndTime is when the operation completed.
	EndTime time.Time

	// Status is the span's final status.
	Status SpanStatus

	// Attributes contains the span's key-value metadata.
	Attributes map[string]any
}

// SpanStatus indicates whether a span completed successfully.
type SpanStatus struct {
	// Code is the status category.
	Code StatusCode

	// Message provides additional context for errors.
	Message string
}

// StatusCode represents the outcome of a span.
type StatusCode int

const (
	// StatusCodeUnset indicates no status was explicitly set.
	StatusCodeUnset StatusCode = 0

	// StatusCodeOK indicates successful completion.
	StatusCodeOK StatusCode = 1

	// StatusCodeError indicates an error occurred.
	StatusCodeError StatusCode = 2
)

// Duration returns the span's execution time.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Err reports whether the span ended with an error status.
func (s *Span) Err() bool {
	return s.Status.Code == StatusCodeError
}

// StringAttr returns the named attribute as a string.
// Returns false if the attribute is absent or not a string.
func (s *Span) StringAttr(key string) (string, bool) {
	v, ok := s.Attributes[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// HasAttr reports whether the named attribute is present.
func (s *Span) HasAttr(key string) bool {
	_, ok := s.Attributes[key]
	return ok
}

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

package payload

import (
	"fmt"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// ValidationError describes a payload that failed schema validation.
type ValidationError struct {
	// Field identifies the offending payload field.
	Field string

	// Message is the human-readable rule violation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed on %s: %s", e.Field, e.Message)
}

// validate checks a payload against the current schema version.
// The checks mirror what the ingestion backend enforces, so locally valid
// payloads are never rejected on arrival.
func validate(p *telemetry.Payload) error {
	if p.Schema != telemetry.SchemaVersion {
		return &ValidationError{Field: "schema_version", Message: fmt.Sprintf("unsupported version %q", p.Schema)}
	}
	if p.TraceID == "" {
		return &ValidationError{Field: "trace_unique_id", Message: "required"}
	}
	if p.SpanID == "" {
		return &ValidationError{Field: "span_unique_id", Message: "required"}
	}
	if !telemetry.ValidLogType(string(p.LogType)) {
		return &ValidationError{Field: "log_type", Message: fmt.Sprintf("unrecognized value %q", p.LogType)}
	}
	if p.Model == "" {
		return &ValidationError{Field: "model", Message: "required"}
	}
	if p.StartTime.IsZero() {
		return &ValidationError{Field: "start_time", Message: "required"}
	}
	if !p.EndTime.IsZero() && p.EndTime.Before(p.StartTime) {
		return &ValidationError{Field: "timestamp", Message: "end precedes start"}
	}
	if p.Latency < 0 {
		return &ValidationError{Field: "latency", Message: "negative"}
	}
	for _, field := range []struct {
		name  string
		value *int
	}{
		{"prompt_tokens", p.PromptTokens},
		{"completion_tokens", p.CompletionTokens},
		{"total_request_tokens", p.TotalTokens},
		{"cache_creation_tokens", p.CacheCreationTokens},
		{"cache_read_tokens", p.CacheReadTokens},
	} {
		if field.value != nil && *field.value < 0 {
			return &ValidationError{Field: field.name, Message: "negative"}
		}
	}
	if p.StatusCode != 0 && (p.StatusCode < 100 || p.StatusCode > 599) {
		return &ValidationError{Field: "status_code", Message: fmt.Sprintf("out of range: %d", p.StatusCode)}
	}
	for i, msg := range p.PromptMessages {
		if msg.Role == "" {
			return &ValidationError{Field: fmt.Sprintf("prompt_messages[%d].role", i), Message: "required"}
		}
	}
	for i, msg := range p.CompletionMessages {
		if msg.Role == "" {
			return &ValidationError{Field: fmt.Sprintf("completion_messages[%d].role", i), Message: "required"}
		}
	}
	return nil
}

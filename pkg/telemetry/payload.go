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

package telemetry

import (
	"time"
)

// SchemaVersion is the payload schema version emitted by this SDK.
// The backend uses it to select the matching ingestion decoder.
const SchemaVersion = "v1"

// Recognized metadata keys. Anything else in the metadata bag is passed
// through to the backend untouched.
const (
	MetadataCustomerID    = "customer_identifier"
	MetadataCustomerEmail = "customer_email"
	MetadataCustomerName  = "customer_name"
)

// Payload is the normalized, versioned record representing one logical LLM
// operation or trace-structural event. All content fields are optional; the
// identity fields are required by the schema.
type Payload struct {
	// Schema identifies the payload schema version.
	Schema string `json:"schema_version"`

	// Identity.
	TraceID  string  `json:"trace_unique_id"`
	SpanID   string  `json:"span_unique_id"`
	ParentID string  `json:"span_parent_id,omitempty"`
	SpanName string  `json:"span_name,omitempty"`
	LogType  LogType `json:"log_type"`

	// Timing.
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"timestamp"`
	Latency          float64   `json:"latency"`
	TimeToFirstToken *float64  `json:"time_to_first_token,omitempty"`

	// Content.
	PromptMessages     []Message  `json:"prompt_messages,omitempty"`
	CompletionMessage  *Message   `json:"completion_message,omitempty"`
	CompletionMessages []Message  `json:"completion_messages,omitempty"`
	Input              string     `json:"input,omitempty"`
	Output             string     `json:"output,omitempty"`
	ToolCalls          []ToolCall `json:"tool_calls,omitempty"`
	ToolChoice         any        `json:"tool_choice,omitempty"`
	Tools              []any      `json:"tools,omitempty"`

	// Usage.
	PromptTokens        *int `json:"prompt_tokens,omitempty"`
	CompletionTokens    *int `json:"completion_tokens,omitempty"`
	TotalTokens         *int `json:"total_request_tokens,omitempty"`
	CacheCreationTokens *int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     *int `json:"cache_read_tokens,omitempty"`

	// Cost in USD. Nil when neither an explicit cost attribute nor usage data
	// was available; the SDK never fabricates a zero.
	Cost *float64 `json:"cost,omitempty"`

	// Model identity, canonicalized to "provider/model" where the provider
	// is known.
	Model string `json:"model"`

	// Status.
	StatusCode   int    `json:"status_code"`
	Error        bool   `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata is a free-form string-keyed bag. Recognized sub-keys are the
	// Metadata* constants above.
	Metadata map[string]any `json:"metadata,omitempty"`

	// FullRequest carries the raw offending record when the primary payload
	// failed schema validation. Unset on the happy path.
	FullRequest any `json:"full_request,omitempty"`
}

// Message is a single conversation message inside a payload.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a normalized function invocation extracted from a span.
type ToolCall struct {
	// Type is the invocation kind; defaults to "function".
	Type string `json:"type"`

	// ID uniquely identifies the call within a completion.
	ID string `json:"id,omitempty"`

	// Function describes the invoked function.
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function half of a tool call.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Batch is the wire envelope for the ingestion endpoint: a single object with
// one "data" array of payload records.
type Batch struct {
	Data []*Payload `json:"data"`
}

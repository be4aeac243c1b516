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

package parse

import (
	"encoding/json"

	"github.com/tombee/spyglass/pkg/telemetry"
)

var (
	// Batch JSON blob: an array of tool-call objects.
	toolCallBatchKeys = []string{
		"gen_ai.completion.tool_calls",
		"llm.tools.calls",
		"ai.response.toolCalls",
	}
	// JSON-encoded single tool-call object.
	toolCallSingleKeys = []string{
		"ai.toolCall",
		"tool.call",
	}
	// Flattened per-field attributes.
	toolNameKeys = []string{"ai.toolCall.name", "tool.name", "gen_ai.tool.name"}
	toolIDKeys   = []string{"ai.toolCall.id", "tool.call_id", "gen_ai.tool.call.id"}
	toolArgsKeys = []string{"ai.toolCall.args", "tool.arguments", "gen_ai.tool.arguments"}

	toolChoiceKeys = []string{"gen_ai.request.tool_choice", "ai.prompt.toolChoice", "llm.tool_choice"}
	toolListKeys   = []string{"gen_ai.request.tools", "ai.prompt.tools", "llm.tools"}
)

// rawToolCall is the loosely-typed decode target tolerating the id and
// argument naming drift across instrumentation sources.
type rawToolCall struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	ToolCallID string          `json:"toolCallId"`
	SnakeID    string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Args       json.RawMessage `json:"args"`
	Function   *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// ToolCalls extracts normalized tool calls from the span.
//
// Locations are tried in priority order: a batch JSON blob under any known
// key, then a JSON-encoded single object, then flattened per-field
// attributes. Every normalized call carries a type ("function" unless the
// source says otherwise) and an id aliased from id/toolCallId/tool_call_id.
// Returns nil when no tool-call data is present or decodable.
func ToolCalls(span *telemetry.Span) []telemetry.ToolCall {
	var batch []rawToolCall
	if jsonAttr(span, &batch, toolCallBatchKeys...) && len(batch) > 0 {
		return normalizeToolCalls(batch)
	}

	var single rawToolCall
	if jsonAttr(span, &single, toolCallSingleKeys...) && (single.Name != "" || single.Function != nil) {
		return normalizeToolCalls([]rawToolCall{single})
	}

	if name, ok := stringAttr(span, toolNameKeys...); ok {
		call := telemetry.ToolCall{
			Type:     "function",
			Function: telemetry.ToolFunction{Name: name},
		}
		if id, ok := stringAttr(span, toolIDKeys...); ok {
			call.ID = id
		}
		if args, ok := stringAttr(span, toolArgsKeys...); ok {
			call.Function.Arguments = args
		}
		return []telemetry.ToolCall{call}
	}

	return nil
}

func normalizeToolCalls(raw []rawToolCall) []telemetry.ToolCall {
	calls := make([]telemetry.ToolCall, 0, len(raw))
	for _, r := range raw {
		call := telemetry.ToolCall{Type: r.Type}
		if call.Type == "" {
			call.Type = "function"
		}

		switch {
		case r.ID != "":
			call.ID = r.ID
		case r.ToolCallID != "":
			call.ID = r.ToolCallID
		case r.SnakeID != "":
			call.ID = r.SnakeID
		}

		name := r.Name
		args := r.Arguments
		if len(args) == 0 {
			args = r.Args
		}
		if r.Function != nil {
			if name == "" {
				name = r.Function.Name
			}
			if len(args) == 0 {
				args = r.Function.Arguments
			}
		}

		call.Function = telemetry.ToolFunction{
			Name:      name,
			Arguments: rawToString(args),
		}
		calls = append(calls, call)
	}
	return calls
}

// rawToString renders tool arguments as a compact string. Quoted JSON strings
// are unwrapped so that pre-encoded argument payloads are not double-escaped.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// ToolChoice extracts the request's tool-choice directive, if present.
func ToolChoice(span *telemetry.Span) any {
	var choice any
	if jsonAttr(span, &choice, toolChoiceKeys...) {
		return choice
	}
	if s, ok := stringAttr(span, toolChoiceKeys...); ok {
		return s
	}
	return nil
}

// Tools extracts the request's declared tool list, if present.
func Tools(span *telemetry.Span) []any {
	var tools []any
	if jsonAttr(span, &tools, toolListKeys...) {
		return tools
	}
	return nil
}

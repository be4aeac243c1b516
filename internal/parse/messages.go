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
	promptMessagesKeys = []string{
		"gen_ai.prompt",
		"ai.prompt.messages",
		"llm.prompt.messages",
	}
	promptTextKeys = []string{
		"ai.prompt",
		"llm.prompt",
		"gen_ai.request.prompt",
	}
	completionTextKeys = []string{
		"gen_ai.completion",
		"ai.response.text",
		"llm.response.content",
	}
	completionObjectKeys = []string{
		"ai.response.object",
		"llm.response.object",
	}
	toolResultKeys = []string{
		"ai.toolCall.result",
		"tool.result",
		"gen_ai.tool.result",
	}
)

// PromptMessages extracts the conversation history sent to the model.
//
// The primary source is a JSON-encoded message array. When that attribute is
// absent or undecodable but raw prompt text exists, a single user message is
// synthesized from it, so downstream consumers always see message-shaped
// prompt content when any prompt was captured at all.
func PromptMessages(span *telemetry.Span) []telemetry.Message {
	var messages []telemetry.Message
	if jsonAttr(span, &messages, promptMessagesKeys...) && len(messages) > 0 {
		return messages
	}

	if text, ok := stringAttr(span, promptTextKeys...); ok {
		return []telemetry.Message{{Role: "user", Content: text}}
	}

	return nil
}

// PromptText extracts the raw prompt string, if one was captured.
func PromptText(span *telemetry.Span) (string, bool) {
	if text, ok := stringAttr(span, promptTextKeys...); ok {
		return text, true
	}
	// Fall back to the last user message of a structured prompt.
	var messages []telemetry.Message
	if jsonAttr(span, &messages, promptMessagesKeys...) {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "user" && messages[i].Content != "" {
				return messages[i].Content, true
			}
		}
	}
	return "", false
}

// CompletionMessages assembles the model's response as messages.
//
// An assistant message is built from the response text (or, failing that, the
// compact rendering of a structured response object) plus any extracted tool
// calls. A tool-result attribute, when present, is appended as a trailing
// tool message. Returns nil when the span carries no response data.
func CompletionMessages(span *telemetry.Span) []telemetry.Message {
	assistant := telemetry.Message{Role: "assistant"}
	populated := false

	if text, ok := stringAttr(span, completionTextKeys...); ok {
		assistant.Content = text
		populated = true
	} else if obj, ok := stringAttr(span, completionObjectKeys...); ok {
		assistant.Content = obj
		populated = true
	} else {
		var obj any
		if jsonAttr(span, &obj, completionObjectKeys...) {
			if raw, err := json.Marshal(obj); err == nil {
				assistant.Content = string(raw)
				populated = true
			}
		}
	}

	if calls := ToolCalls(span); len(calls) > 0 {
		assistant.ToolCalls = calls
		populated = true
	}

	if !populated {
		return nil
	}

	messages := []telemetry.Message{assistant}

	if result, ok := stringAttr(span, toolResultKeys...); ok {
		msg := telemetry.Message{Role: "tool", Content: result}
		if len(assistant.ToolCalls) > 0 {
			msg.ToolCallID = assistant.ToolCalls[0].ID
			msg.Name = assistant.ToolCalls[0].Function.Name
		}
		messages = append(messages, msg)
	}

	return messages
}

// CompletionText extracts the raw response string, if one was captured.
func CompletionText(span *telemetry.Span) (string, bool) {
	return stringAttr(span, completionTextKeys...)
}

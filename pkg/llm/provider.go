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

// Package llm defines the minimal provider-agnostic surface the SDK
// instruments. Applications bring their own provider implementations; the
// SDK only needs enough structure to trace requests and account usage.
package llm

import (
	"context"
)

// Provider is an LLM client the SDK can wrap with instrumentation.
type Provider interface {
	// Name returns the provider identifier, e.g. "anthropic" or "openai".
	Name() string

	// Complete sends a completion request and blocks for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and returns a channel of chunks.
	// The caller must drain the channel; errors arrive as chunks with Err
	// set, and the channel closes when the response is complete.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// Role identifies the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single conversation message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls are invocations made by the assistant; only valid on
	// assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-result message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name identifies the tool that produced a result message.
	Name string `json:"name,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function the model may call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CompletionRequest carries the parameters of one completion.
type CompletionRequest struct {
	// Model is the model id to use.
	Model string

	// Messages is the conversation history including the current prompt.
	Messages []Message

	// Temperature controls randomness; nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length; nil uses the provider default.
	MaxTokens *int

	// Tools are functions the model may call.
	Tools []Tool

	// Metadata carries request tracking information.
	Metadata map[string]string
}

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the full result of a completion request.
type CompletionResponse struct {
	// Model is the model that actually served the request, which may differ
	// from the requested id.
	Model string

	// Content is the assistant's text response.
	Content string

	// ToolCalls are any function invocations the model requested.
	ToolCalls []ToolCall

	// Usage is the provider-reported token accounting; zero-valued when the
	// provider reported nothing.
	Usage Usage

	// FinishReason is the provider's stop reason, e.g. "stop" or
	// "tool_calls".
	FinishReason string
}

// StreamChunk is one increment of a streaming response.
type StreamChunk struct {
	// Content is the text delta in this chunk.
	Content string

	// ToolCall is a complete tool invocation, delivered once assembled.
	ToolCall *ToolCall

	// Usage arrives on the final chunk for providers that report it.
	Usage *Usage

	// Done marks the final chunk.
	Done bool

	// Err reports a mid-stream failure; the channel closes after it.
	Err error
}

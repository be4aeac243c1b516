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

package instrument

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tombee/spyglass/pkg/llm"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// TracedProvider wraps an llm.Provider so every Complete and Stream call
// emits a span carrying the gen_ai.* attributes the export pipeline parses.
type TracedProvider struct {
	provider llm.Provider
	tracer   oteltrace.Tracer
}

var _ llm.Provider = (*TracedProvider)(nil)

// WrapProvider instruments an LLM provider.
func WrapProvider(provider llm.Provider, tp oteltrace.TracerProvider) llm.Provider {
	return &TracedProvider{
		provider: provider,
		tracer: tp.Tracer(telemetry.ScopeName,
			oteltrace.WithInstrumentationVersion(telemetry.Version)),
	}
}

// Name returns the underlying provider's name.
func (t *TracedProvider) Name() string {
	return t.provider.Name()
}

// Complete traces a blocking completion call.
func (t *TracedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := t.tracer.Start(ctx, "gen_ai.chat",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(requestAttrs(t.provider.Name(), req)...),
	)
	defer span.End()

	resp, err := t.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(responseAttrs(resp)...)
	return resp, nil
}

// Stream traces a streaming completion. The span stays open until the chunk
// channel closes; time to first token and accumulated output are recorded
// from the relayed chunks.
func (t *TracedProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ctx, span := t.tracer.Start(ctx, "gen_ai.chat.doStream",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(requestAttrs(t.provider.Name(), req)...),
	)

	start := time.Now()
	upstream, err := t.provider.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer span.End()

		var content []byte
		first := true
		for chunk := range upstream {
			if first && (chunk.Content != "" || chunk.ToolCall != nil) {
				first = false
				span.SetAttributes(attribute.Float64(
					"gen_ai.server.time_to_first_token",
					time.Since(start).Seconds()))
			}
			content = append(content, chunk.Content...)
			if chunk.Err != nil {
				span.RecordError(chunk.Err)
				span.SetStatus(codes.Error, chunk.Err.Error())
			}
			if chunk.Usage != nil {
				span.SetAttributes(
					attribute.Int("gen_ai.usage.input_tokens", chunk.Usage.PromptTokens),
					attribute.Int("gen_ai.usage.output_tokens", chunk.Usage.CompletionTokens),
				)
			}
			out <- chunk
		}
		if len(content) > 0 {
			span.SetAttributes(attribute.String("gen_ai.completion", string(content)))
		}
	}()
	return out, nil
}

func requestAttrs(provider string, req llm.CompletionRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.request.model", req.Model),
		attribute.String("gen_ai.operation.name", "chat"),
	}
	if prompt, err := json.Marshal(req.Messages); err == nil {
		attrs = append(attrs, attribute.String("gen_ai.prompt", string(prompt)))
	}
	if len(req.Tools) > 0 {
		if tools, err := json.Marshal(req.Tools); err == nil {
			attrs = append(attrs, attribute.String("gen_ai.request.tools", string(tools)))
		}
	}
	if req.Temperature != nil {
		attrs = append(attrs, attribute.Float64("gen_ai.request.temperature", *req.Temperature))
	}
	if req.MaxTokens != nil {
		attrs = append(attrs, attribute.Int("gen_ai.request.max_tokens", *req.MaxTokens))
	}
	return attrs
}

func responseAttrs(resp *llm.CompletionResponse) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	}
	if resp.Content != "" {
		attrs = append(attrs, attribute.String("gen_ai.completion", resp.Content))
	}
	if resp.FinishReason != "" {
		attrs = append(attrs, attribute.String("gen_ai.response.finish_reasons", resp.FinishReason))
	}
	if len(resp.ToolCalls) > 0 {
		if calls, err := json.Marshal(normalizeCalls(resp.ToolCalls)); err == nil {
			attrs = append(attrs, attribute.String("gen_ai.completion.tool_calls", string(calls)))
		}
	}
	return attrs
}

// normalizeCalls reshapes provider tool calls into the structure the
// tool-call parser expects.
func normalizeCalls(calls []llm.ToolCall) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		out = append(out, map[string]any{
			"id":   call.ID,
			"type": "function",
			"function": map[string]any{
				"name":      call.Name,
				"arguments": call.Arguments,
			},
		})
	}
	return out
}
